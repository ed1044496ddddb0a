package extract

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

// QRCodeExtractor decodes one- and two-dimensional barcodes from image
// payloads, one data node per detected symbol.
type QRCodeExtractor struct{}

func (QRCodeExtractor) Name() string { return "qrcode" }

func (QRCodeExtractor) Extract(node *whisper.Node) ([]*whisper.Node, error) {
	file := node.FilePayload()
	if file == nil {
		return nil, nil
	}

	img, _, err := image.Decode(bytes.NewReader(file.Content))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("binarize image: %w", err)
	}

	var children []*whisper.Node
	readers := []gozxing.Reader{
		qrcode.NewQRCodeReader(),
		oned.NewMultiFormatUPCEANReader(nil),
		oned.NewCode128Reader(),
		oned.NewCode39Reader(),
		oned.NewCode93Reader(),
		oned.NewCodaBarReader(),
		oned.NewITFReader(),
	}
	for _, reader := range readers {
		result, err := reader.Decode(bmp, nil)
		if err != nil {
			continue // no symbol of this family present
		}
		children = append(children, node.NewChild(&whisper.Data{
			Type:    whisper.DataQRCode,
			Content: []byte(result.GetText()),
		}))
	}
	return children, nil
}
