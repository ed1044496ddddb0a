package whisper

import (
	"fmt"
	"os"
	"path/filepath"
)

// Wire shapes of the reply tree. File messages never carry content
// inline: the bytes land in the output directory under the node UUID
// and the path field carries that UUID.

type ReplyFile struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mime_type"`
	MD5       string `json:"md5"`
	SHA256    string `json:"sha256"`
	SHA1      string `json:"sha1"`
}

type ReplyData struct {
	Type    string `json:"type"`
	Content []byte `json:"content"`
}

type ReplyMeta struct {
	MapString map[string]string `json:"map_string"`
	MapNumber map[string]int64  `json:"map_number"`
	MapBool   map[string]bool   `json:"map_bool"`
}

type ReplyNode struct {
	ID       int64      `json:"id"`
	ParentID int64      `json:"parent_id,omitempty"`
	Children []int64    `json:"children,omitempty"`
	File     *ReplyFile `json:"file,omitempty"`
	Data     *ReplyData `json:"data,omitempty"`
	Meta     ReplyMeta  `json:"meta"`
}

type Reply struct {
	Tree []ReplyNode `json:"tree"`
}

// ReplySerializer walks a finished tree breadth-first into the flat wire
// form and spills file payload bytes into the output directory.
type ReplySerializer struct {
	outputDir string
}

func NewReplySerializer(outputDir string) (*ReplySerializer, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("output directory not configured")
	}
	return &ReplySerializer{outputDir: outputDir}, nil
}

// Serialize emits one wire node per tree node in BFS order. Parents
// always precede their children in the flat list.
func (s *ReplySerializer) Serialize(root *Node) (*Reply, error) {
	reply := &Reply{}
	if root == nil {
		return reply, nil
	}

	queue := []*Node{root}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		wire, err := s.wireNode(curr)
		if err != nil {
			return nil, err
		}
		reply.Tree = append(reply.Tree, wire)
		queue = append(queue, curr.Children...)
	}
	return reply, nil
}

func (s *ReplySerializer) wireNode(node *Node) (ReplyNode, error) {
	wire := ReplyNode{
		ID: node.ID,
		Meta: ReplyMeta{
			MapString: node.Meta.Strings,
			MapNumber: node.Meta.Numbers,
			MapBool:   node.Meta.Bools,
		},
	}
	if node.Parent != nil {
		wire.ParentID = node.Parent.ID
	}
	for _, child := range node.Children {
		wire.Children = append(wire.Children, child.ID)
	}

	switch c := node.Content.(type) {
	case *File:
		if err := s.writeContent(node.UUID, c.Content); err != nil {
			return ReplyNode{}, err
		}
		wire.File = &ReplyFile{
			Path:      node.UUID,
			Name:      c.Name,
			Extension: c.Extension,
			Size:      c.Size,
			MimeType:  c.MimeType,
			MD5:       c.MD5,
			SHA256:    c.SHA256,
			SHA1:      c.SHA1,
		}
	case *Data:
		wire.Data = &ReplyData{Type: c.Type, Content: c.Content}
	}
	return wire, nil
}

func (s *ReplySerializer) writeContent(name string, content []byte) error {
	full := filepath.Join(s.outputDir, name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("write payload %s: %w", name, err)
	}
	return nil
}
