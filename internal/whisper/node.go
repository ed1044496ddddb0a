package whisper

import "fmt"

// Symbolic types carried by Data payloads.
const (
	DataText        = "TEXT"
	DataURL         = "URL"
	DataOCR         = "OCR"
	DataQRCode      = "QRCODE"
	DataEmailHeader = "EMAIL_HEADER"
	DataEmailText   = "EMAIL_TEXT"
	DataEmailHTML   = "EMAIL_HTML"
)

// Per-request limits inherited from the root node down the tree.
const (
	DefaultPDFMaxPages  = 10
	DefaultWordMaxPages = 10
)

// File is the payload of a node backed by raw file bytes. Identity
// fields (size, mime, hashes) are filled in during digest.
type File struct {
	Path      string
	Name      string
	Extension string
	Size      int64
	MimeType  string
	MD5       string
	SHA1      string
	SHA256    string
	Content   []byte
}

// Data is the payload of a node produced by an extractor: a typed
// fragment such as a URL, OCR text or an email body.
type Data struct {
	Type    string
	Content []byte
}

// Payload is the tagged union carried by a node. Exactly one of the two
// variants is ever set.
type Payload interface {
	payload()
}

func (*File) payload() {}
func (*Data) payload() {}

// Meta holds per-node facts published by analyzers and extractors:
// timings, error messages, counts, flags. Keys are not pre-declared.
type Meta struct {
	Strings map[string]string
	Numbers map[string]int64
	Bools   map[string]bool
}

func NewMeta() Meta {
	return Meta{
		Strings: make(map[string]string),
		Numbers: make(map[string]int64),
		Bools:   make(map[string]bool),
	}
}

// AppendError records a component failure on the owning node without
// aborting the request.
func (m *Meta) AppendError(name string, err error) {
	m.Strings["error_message"] += fmt.Sprintf("%s: %s;", name, err)
}

// Node is a single item in the dissection tree. The parent pointer is
// for ID lookup only; ownership runs strictly top-down through Children.
type Node struct {
	ID       int64
	UUID     string
	Parent   *Node
	Children []*Node

	Content Payload

	Passwords    []string
	PDFMaxPages  int
	WordMaxPages int

	Flavor Flavor
	Meta   Meta

	classified bool
}

// NewRoot builds the root node of a dissection from a file payload.
func NewRoot(f *File, passwords []string) *Node {
	return &Node{
		Content:      f,
		Passwords:    passwords,
		PDFMaxPages:  DefaultPDFMaxPages,
		WordMaxPages: DefaultWordMaxPages,
		Meta:         NewMeta(),
	}
}

// NewChild fabricates a child of n carrying the given payload. The
// parent's passwords and page limits are inherited verbatim; the ID is
// left at zero for the dissector to assign.
func (n *Node) NewChild(p Payload) *Node {
	return &Node{
		Parent:       n,
		Content:      p,
		Passwords:    n.Passwords,
		PDFMaxPages:  n.PDFMaxPages,
		WordMaxPages: n.WordMaxPages,
		Meta:         NewMeta(),
	}
}

// FilePayload returns the file variant, or nil for data nodes.
func (n *Node) FilePayload() *File {
	f, _ := n.Content.(*File)
	return f
}

// DataPayload returns the data variant, or nil for file nodes.
func (n *Node) DataPayload() *Data {
	d, _ := n.Content.(*Data)
	return d
}
