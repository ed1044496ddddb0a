package whisper

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Flavor decides which analyzers and extractors apply to a node.
type Flavor int

const (
	FlavorOther Flavor = iota
	FlavorTextPlain
	FlavorTextHTML
	FlavorImage
	FlavorCompressed
	FlavorDoc
	FlavorDocx
	FlavorPDF
	FlavorEmail
)

func (f Flavor) String() string {
	switch f {
	case FlavorTextPlain:
		return "TEXT_PLAIN"
	case FlavorTextHTML:
		return "TEXT_HTML"
	case FlavorImage:
		return "IMAGE"
	case FlavorCompressed:
		return "COMPRESSED_FILE"
	case FlavorDoc:
		return "DOC"
	case FlavorDocx:
		return "DOCX"
	case FlavorPDF:
		return "PDF"
	case FlavorEmail:
		return "EMAIL"
	}
	return "OTHER"
}

// Extension table. An entry here wins over whatever the MIME sniffer
// says, so a mislabelled .docx (detected as zip) still routes to the
// word extractor.
var extensionFlavors = map[string]Flavor{
	"txt":  FlavorTextPlain,
	"html": FlavorTextHTML,
	"htm":  FlavorTextHTML,
	"jpg":  FlavorImage,
	"jpeg": FlavorImage,
	"png":  FlavorImage,
	"gif":  FlavorImage,
	"bmp":  FlavorImage,
	"webp": FlavorImage,
	"zip":  FlavorCompressed,
	"rar":  FlavorCompressed,
	"7z":   FlavorCompressed,
	"tar":  FlavorCompressed,
	"gz":   FlavorCompressed,
	"bz2":  FlavorCompressed,
	"xz":   FlavorCompressed,
	"doc":  FlavorDoc,
	"docx": FlavorDocx,
	"pdf":  FlavorPDF,
	"eml":  FlavorEmail,
}

var mimeFlavors = map[string]Flavor{
	"text/plain":                    FlavorTextPlain,
	"text/html":                     FlavorTextHTML,
	"application/zip":               FlavorCompressed,
	"application/x-rar-compressed":  FlavorCompressed,
	"application/vnd.rar":           FlavorCompressed,
	"application/x-7z-compressed":   FlavorCompressed,
	"application/x-tar":             FlavorCompressed,
	"application/gzip":              FlavorCompressed,
	"application/x-gzip":            FlavorCompressed,
	"application/x-bzip2":           FlavorCompressed,
	"application/x-xz":              FlavorCompressed,
	"application/msword":            FlavorDoc,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FlavorDocx,
	"application/pdf": FlavorPDF,
	"message/rfc822":  FlavorEmail,
}

// Symbolic data types that route back into the text pipeline. Anything
// absent here (URL, EMAIL_HEADER, ...) is a leaf.
var dataFlavors = map[string]Flavor{
	DataText:   FlavorTextPlain,
	DataOCR:    FlavorTextPlain,
	DataQRCode: FlavorTextPlain,
}

// DetectMIME sniffs the media type from content bytes. Never fails;
// unknown content comes back as application/octet-stream.
func DetectMIME(content []byte) string {
	mt := mimetype.Detect(content).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(mt)
}

// ClassifyFile maps a detected MIME type plus a filename extension to a
// flavor. The extension wins when it maps to a known flavor.
func ClassifyFile(mimeType, extension string) Flavor {
	if f, ok := extensionFlavors[strings.ToLower(extension)]; ok {
		return f
	}
	if f, ok := mimeFlavors[mimeType]; ok {
		return f
	}
	if strings.HasPrefix(mimeType, "image/") {
		return FlavorImage
	}
	return FlavorOther
}

// ClassifyData maps a data payload's symbolic type to a flavor.
func ClassifyData(dataType string) Flavor {
	if f, ok := dataFlavors[dataType]; ok {
		return f
	}
	return FlavorOther
}

// FileExtension derives the lowercased extension without the leading
// dot, or "" when the name has none.
func FileExtension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
