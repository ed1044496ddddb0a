package extract

import (
	"archive/tar"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode"
	"github.com/yeka/zip"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

// ArchiveAnalyzer publishes listing facts about an archive without
// extracting it. Only fields the codec yields without error are
// published; a failure lands in error_message and the extractor still
// gets its turn.
type ArchiveAnalyzer struct{}

func (ArchiveAnalyzer) Name() string { return "archive_analyzer" }

func (ArchiveAnalyzer) Analyze(node *whisper.Node) error {
	file := node.FilePayload()
	if file == nil {
		return nil
	}
	if len(file.Content) == 0 {
		return fmt.Errorf("empty content")
	}

	meta := &node.Meta
	data := file.Content
	switch whisper.DetectMIME(data) {
	case "application/zip":
		return analyzeZip(meta, data)
	case "application/x-rar-compressed", "application/vnd.rar":
		return analyzeRar(meta, data)
	case "application/x-7z-compressed":
		return analyzeSevenZip(meta, data)
	case "application/x-tar":
		return analyzeTar(meta, data)
	case "application/gzip", "application/x-gzip":
		return analyzeGzip(meta, data)
	case "application/x-bzip2", "application/x-xz":
		return analyzeSingleStream(meta, data)
	}
	return fmt.Errorf("unrecognized archive format")
}

func analyzeZip(meta *whisper.Meta, data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	var files, folders, size, packSize int64
	encrypted := false
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			folders++
			continue
		}
		files++
		size += int64(f.UncompressedSize64)
		packSize += int64(f.CompressedSize64)
		if f.IsEncrypted() {
			encrypted = true
		}
	}
	publishListing(meta, files, folders, size, packSize, encrypted)
	return nil
}

func analyzeRar(meta *whisper.Meta, data []byte) error {
	r, err := rardecode.NewReader(bytes.NewReader(data), "")
	if err != nil {
		// Header-encrypted volumes refuse to open without the key;
		// that alone is a positive signal.
		if strings.Contains(strings.ToLower(err.Error()), "password") {
			meta.Bools["is_encrypted"] = true
		}
		return fmt.Errorf("open rar: %w", err)
	}

	var files, folders, size int64
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("rar listing: %w", err)
		}
		if hdr.IsDir {
			folders++
			continue
		}
		files++
		size += hdr.UnPackedSize
	}
	publishListing(meta, files, folders, size, int64(len(data)), false)
	return nil
}

func analyzeSevenZip(meta *whisper.Meta, data []byte) error {
	r, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "password") {
			meta.Bools["is_encrypted"] = true
		}
		return fmt.Errorf("open 7z: %w", err)
	}

	var files, folders, size int64
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			folders++
			continue
		}
		files++
		size += f.FileInfo().Size()
	}
	publishListing(meta, files, folders, size, int64(len(data)), false)
	return nil
}

func analyzeTar(meta *whisper.Meta, data []byte) error {
	tr := tar.NewReader(bytes.NewReader(data))
	var files, folders, size int64
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar listing: %w", err)
		}
		if hdr.Typeflag == tar.TypeDir {
			folders++
			continue
		}
		files++
		size += hdr.Size
	}
	publishListing(meta, files, folders, size, int64(len(data)), false)
	return nil
}

// analyzeGzip reads the decompressed size from the ISIZE trailer
// instead of inflating the stream.
func analyzeGzip(meta *whisper.Meta, data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("truncated gzip stream")
	}
	size := int64(binary.LittleEndian.Uint32(data[len(data)-4:]))
	publishListing(meta, 1, 0, size, int64(len(data)), false)
	return nil
}

func analyzeSingleStream(meta *whisper.Meta, data []byte) error {
	meta.Numbers["items_count"] = 1
	meta.Numbers["files_count"] = 1
	meta.Numbers["folders_count"] = 0
	meta.Numbers["pack_size"] = int64(len(data))
	meta.Bools["is_encrypted"] = false
	meta.Numbers["volumes_count"] = 1
	meta.Bools["is_multi_volume"] = false
	return nil
}

func publishListing(meta *whisper.Meta, files, folders, size, packSize int64, encrypted bool) {
	meta.Numbers["items_count"] = files + folders
	meta.Numbers["files_count"] = files
	meta.Numbers["folders_count"] = folders
	meta.Numbers["size"] = size
	meta.Numbers["pack_size"] = packSize
	meta.Bools["is_encrypted"] = encrypted
	meta.Numbers["volumes_count"] = 1
	meta.Bools["is_multi_volume"] = false
}
