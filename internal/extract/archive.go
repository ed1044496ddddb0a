package extract

import (
	"archive/tar"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode"
	"github.com/ulikunitz/xz"
	"github.com/yeka/zip"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

// errWrongPassword classifies decryption failures that should advance
// the password loop instead of aborting it.
var errWrongPassword = errors.New("wrong password")

type archiveMember struct {
	path    string
	content []byte
}

// ArchiveExtractor decompresses archive payloads, walking the supplied
// password candidates when the plain attempt fails. Any failure to open
// the archive, including exhaustion of the candidates, is fatal for the
// request.
type ArchiveExtractor struct{}

func (ArchiveExtractor) Name() string { return "archive" }

func (ArchiveExtractor) Extract(node *whisper.Node) ([]*whisper.Node, error) {
	file := node.FilePayload()
	if file == nil {
		return nil, nil
	}

	members, err := openArchive(file, "")
	if err != nil {
		opened := false
		for _, password := range node.Passwords {
			members, err = openArchive(file, password)
			if err == nil {
				node.Meta.Strings["correct_password"] = password
				opened = true
				break
			}
			if wrongPassword(err) {
				continue
			}
			return nil, whisper.Fatalf("extract archive: %w", err)
		}
		if !opened {
			return nil, whisper.Fatalf("unable to extract archive, all %d passwords rejected: %w", len(node.Passwords), err)
		}
	}

	children := make([]*whisper.Node, 0, len(members))
	for _, m := range members {
		children = append(children, node.NewChild(&whisper.File{
			Path:    m.path,
			Name:    path.Base(m.path),
			Content: m.content,
		}))
	}
	return children, nil
}

func wrongPassword(err error) bool {
	if errors.Is(err, errWrongPassword) {
		return true
	}
	// Codecs without typed password errors surface checksum or cipher
	// failures on a bad key.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "checksum")
}

// openArchive dispatches on the sniffed container format and returns
// the decompressed members in listing order.
func openArchive(file *whisper.File, password string) ([]archiveMember, error) {
	data := file.Content
	switch whisper.DetectMIME(data) {
	case "application/zip":
		return openZip(data, password)
	case "application/x-rar-compressed", "application/vnd.rar":
		return openRar(data, password)
	case "application/x-7z-compressed":
		return openSevenZip(data, password)
	case "application/x-tar":
		return openTar(data)
	case "application/gzip", "application/x-gzip":
		return openGzip(data, file.Name)
	case "application/x-bzip2":
		return openBzip2(data, file.Name)
	case "application/x-xz":
		return openXz(data, file.Name)
	}
	return nil, fmt.Errorf("unrecognized archive format %q", whisper.DetectMIME(data))
}

func openZip(data []byte, password string) ([]archiveMember, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var members []archiveMember
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if f.IsEncrypted() {
			if password == "" {
				return nil, fmt.Errorf("zip member %s is encrypted: %w", f.Name, errWrongPassword)
			}
			f.SetPassword(password)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, memberError(f.IsEncrypted(), f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, memberError(f.IsEncrypted(), f.Name, err)
		}
		members = append(members, archiveMember{path: f.Name, content: content})
	}
	return members, nil
}

// memberError maps a read failure on an encrypted member to the wrong
// password signal; zip does not verify keys up front.
func memberError(encrypted bool, name string, err error) error {
	if encrypted {
		return fmt.Errorf("zip member %s: %v: %w", name, err, errWrongPassword)
	}
	return fmt.Errorf("zip member %s: %w", name, err)
}

func openRar(data []byte, password string) ([]archiveMember, error) {
	r, err := rardecode.NewReader(bytes.NewReader(data), password)
	if err != nil {
		return nil, fmt.Errorf("open rar: %w", err)
	}

	var members []archiveMember
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("rar entry: %w", err)
		}
		if hdr.IsDir {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("rar member %s: %w", hdr.Name, err)
		}
		members = append(members, archiveMember{path: hdr.Name, content: content})
	}
	return members, nil
}

func openSevenZip(data []byte, password string) ([]archiveMember, error) {
	r, err := sevenzip.NewReaderWithPassword(bytes.NewReader(data), int64(len(data)), password)
	if err != nil {
		return nil, fmt.Errorf("open 7z: %w", err)
	}

	var members []archiveMember
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("7z member %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("7z member %s: %w", f.Name, err)
		}
		members = append(members, archiveMember{path: f.Name, content: content})
	}
	return members, nil
}

func openTar(data []byte) ([]archiveMember, error) {
	tr := tar.NewReader(bytes.NewReader(data))
	var members []archiveMember
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("tar member %s: %w", hdr.Name, err)
		}
		members = append(members, archiveMember{path: hdr.Name, content: content})
	}
	return members, nil
}

func openGzip(data []byte, name string) ([]archiveMember, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gr.Close()

	content, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("gzip stream: %w", err)
	}
	memberName := gr.Name
	if memberName == "" {
		memberName = stripArchiveExt(name)
	}
	return []archiveMember{{path: memberName, content: content}}, nil
}

func openBzip2(data []byte, name string) ([]archiveMember, error) {
	content, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("bzip2 stream: %w", err)
	}
	return []archiveMember{{path: stripArchiveExt(name), content: content}}, nil
}

func openXz(data []byte, name string) ([]archiveMember, error) {
	xr, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xz: %w", err)
	}
	content, err := io.ReadAll(xr)
	if err != nil {
		return nil, fmt.Errorf("xz stream: %w", err)
	}
	return []archiveMember{{path: stripArchiveExt(name), content: content}}, nil
}

// stripArchiveExt drops the compression suffix from a single-stream
// archive's own name, so a.tar.gz yields the member a.tar.
func stripArchiveExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	if name == "" {
		return "stream"
	}
	return name
}
