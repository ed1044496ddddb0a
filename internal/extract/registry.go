package extract

import (
	"github.com/otiai10/gosseract/v2"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

// NewRegistry builds the flavor dispatch table. Extractor order within
// a flavor is part of the contract: qrcode runs before ocr on images,
// and sibling order in the reply follows it.
func NewRegistry(ocr *OCREngine) *whisper.Registry {
	extractors := map[whisper.Flavor][]whisper.Extractor{
		whisper.FlavorTextPlain:  {URLExtractor{}},
		whisper.FlavorTextHTML:   {HTMLExtractor{}},
		whisper.FlavorImage:      {QRCodeExtractor{}, OCRExtractor{Engine: ocr}},
		whisper.FlavorCompressed: {ArchiveExtractor{}},
		whisper.FlavorDoc:        {WordExtractor{}},
		whisper.FlavorDocx:       {WordExtractor{}},
		whisper.FlavorPDF:        {PDFExtractor{}},
		whisper.FlavorEmail:      {EmailExtractor{}},
	}
	analyzers := map[whisper.Flavor][]whisper.Analyzer{
		whisper.FlavorCompressed: {ArchiveAnalyzer{}},
	}
	return whisper.NewRegistry(extractors, analyzers)
}

// Workers exposes the heavy task entry points to the batch processor.
// Batch tasks carry only payload bytes and the inherited page limit.
func Workers(ocr *OCREngine) whisper.BatchWorkers {
	return whisper.BatchWorkers{
		OCR: ocr.Recognize,
		Word: func(doc []byte, maxPages int) (string, error) {
			return docxText(doc, maxPages*paragraphsPerPage)
		},
		PDF: pdfText,
	}
}

// Probe reports which heavy engines this build can actually reach, for
// the startup log line.
func Probe() map[string]string {
	probe := map[string]string{
		"tesseract": gosseract.Version(),
	}
	if bin, err := lookupOfficeBinary(); err == nil {
		probe["libreoffice"] = bin
	} else {
		probe["libreoffice"] = "unavailable"
	}
	return probe
}
