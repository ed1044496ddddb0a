package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

var emailHeaderKeys = []string{"From", "To", "Subject", "Date", "Message-ID"}

// EmailExtractor parses an RFC 822 message into a header summary node,
// attachment file nodes and body text/html nodes, and publishes the
// attachment and body-part counts on the parent.
type EmailExtractor struct{}

func (EmailExtractor) Name() string { return "email" }

func (EmailExtractor) Extract(node *whisper.Node) ([]*whisper.Node, error) {
	file := node.FilePayload()
	if file == nil {
		return nil, nil
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(file.Content))
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	var children []*whisper.Node
	if header := headerSummary(env); header != "" {
		children = append(children, node.NewChild(&whisper.Data{
			Type:    whisper.DataEmailHeader,
			Content: []byte(header),
		}))
	}

	var bodies []*whisper.Node
	attachments := 0
	walkParts(env.Root, func(part *enmime.Part) {
		if part.Disposition == "attachment" && part.FileName != "" {
			attachments++
			children = append(children, node.NewChild(&whisper.File{
				Path:    part.FileName,
				Name:    part.FileName,
				Content: part.Content,
			}))
			return
		}
		switch part.ContentType {
		case "text/plain":
			bodies = append(bodies, node.NewChild(&whisper.Data{
				Type:    whisper.DataEmailText,
				Content: part.Content,
			}))
		case "text/html":
			bodies = append(bodies, node.NewChild(&whisper.Data{
				Type:    whisper.DataEmailHTML,
				Content: part.Content,
			}))
		}
	})
	children = append(children, bodies...)

	node.Meta.Numbers["attachment_count"] = int64(attachments)
	node.Meta.Numbers["body_parts_count"] = int64(len(bodies))
	return children, nil
}

// walkParts visits every leaf part of the MIME tree in declaration
// order. A single-part message is its own leaf.
func walkParts(part *enmime.Part, visit func(*enmime.Part)) {
	if part == nil {
		return
	}
	if part.FirstChild == nil {
		visit(part)
		return
	}
	for child := part.FirstChild; child != nil; child = child.NextSibling {
		walkParts(child, visit)
	}
}

func headerSummary(env *enmime.Envelope) string {
	var lines []string
	for _, key := range emailHeaderKeys {
		if value := env.GetHeader(key); value != "" {
			lines = append(lines, key+": "+value)
		}
	}
	return strings.Join(lines, "\n")
}
