package extract

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"testing"

	yekazip "github.com/yeka/zip"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

func buildZip(t *testing.T, members map[string]string, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := yekazip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		w.Write([]byte(members[name]))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func buildEncryptedZip(t *testing.T, password string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := yekazip.NewWriter(&buf)
	w, err := zw.Encrypt("secret.txt", password, yekazip.AES256Encryption)
	if err != nil {
		t.Fatalf("encrypt member: %v", err)
	}
	w.Write([]byte("classified"))
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func archiveNode(content []byte, passwords []string) *whisper.Node {
	return whisper.NewRoot(&whisper.File{
		Path:    "input.zip",
		Name:    "input.zip",
		Content: content,
	}, passwords)
}

func TestArchiveExtractor_PlainZip(t *testing.T) {
	data := buildZip(t, map[string]string{"a.txt": "hello", "b.txt": "world"}, []string{"a.txt", "b.txt"})
	node := archiveNode(data, nil)

	children, err := ArchiveExtractor{}.Extract(node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 members, got %d", len(children))
	}
	wantNames := []string{"a.txt", "b.txt"}
	wantContent := []string{"hello", "world"}
	for i, child := range children {
		file := child.FilePayload()
		if file == nil {
			t.Fatalf("member %d is not a file node", i)
		}
		if file.Path != wantNames[i] || string(file.Content) != wantContent[i] {
			t.Errorf("member %d: %s=%q, want %s=%q", i, file.Path, file.Content, wantNames[i], wantContent[i])
		}
	}
	if _, ok := node.Meta.Strings["correct_password"]; ok {
		t.Error("correct_password must not be set without a password")
	}
}

func TestArchiveExtractor_PasswordNotFirstInList(t *testing.T) {
	data := buildEncryptedZip(t, "abcd")
	node := archiveNode(data, []string{"wrong", "abcd"})

	children, err := ArchiveExtractor{}.Extract(node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 1 || string(children[0].FilePayload().Content) != "classified" {
		t.Fatalf("member not decrypted: %+v", children)
	}
	if got := node.Meta.Strings["correct_password"]; got != "abcd" {
		t.Errorf("correct_password = %q, want abcd", got)
	}
}

func TestArchiveExtractor_PasswordExhaustionIsFatal(t *testing.T) {
	data := buildEncryptedZip(t, "abcd")
	node := archiveNode(data, []string{"wrong"})

	_, err := ArchiveExtractor{}.Extract(node)
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if !whisper.IsFatal(err) {
		t.Errorf("password exhaustion must be fatal, got %v", err)
	}
}

func TestArchiveExtractor_EmptyPasswordListIsFatal(t *testing.T) {
	data := buildEncryptedZip(t, "abcd")
	node := archiveNode(data, nil)

	_, err := ArchiveExtractor{}.Extract(node)
	if err == nil || !whisper.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestArchiveExtractor_Tar(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range []struct{ name, body string }{
		{"first.txt", "one"},
		{"nested/second.txt", "two"},
	} {
		tw.WriteHeader(&tar.Header{Name: m.name, Mode: 0o644, Size: int64(len(m.body))})
		tw.Write([]byte(m.body))
	}
	tw.Close()

	node := whisper.NewRoot(&whisper.File{Name: "a.tar", Content: buf.Bytes()}, nil)
	children, err := ArchiveExtractor{}.Extract(node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 members, got %d", len(children))
	}
	if children[1].FilePayload().Path != "nested/second.txt" {
		t.Errorf("member path lost: %s", children[1].FilePayload().Path)
	}
	if children[1].FilePayload().Name != "second.txt" {
		t.Errorf("member name should be the base name: %s", children[1].FilePayload().Name)
	}
}

func TestArchiveExtractor_GzipSingleStream(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write([]byte("hello"))
	gw.Close()

	node := whisper.NewRoot(&whisper.File{Name: "notes.txt.gz", Content: buf.Bytes()}, nil)
	children, err := ArchiveExtractor{}.Extract(node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("expected 1 member, got %d", len(children))
	}
	file := children[0].FilePayload()
	if file.Path != "notes.txt" || string(file.Content) != "hello" {
		t.Errorf("member %s=%q", file.Path, file.Content)
	}
}

func TestArchiveAnalyzer_ZipListing(t *testing.T) {
	data := buildZip(t, map[string]string{"a.txt": "hello", "b.txt": "world"}, []string{"a.txt", "b.txt"})
	node := archiveNode(data, nil)

	if err := (ArchiveAnalyzer{}).Analyze(node); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.Meta.Numbers["items_count"] != 2 {
		t.Errorf("items_count = %d", node.Meta.Numbers["items_count"])
	}
	if node.Meta.Numbers["files_count"] != 2 {
		t.Errorf("files_count = %d", node.Meta.Numbers["files_count"])
	}
	if node.Meta.Numbers["folders_count"] != 0 {
		t.Errorf("folders_count = %d", node.Meta.Numbers["folders_count"])
	}
	if node.Meta.Numbers["size"] != int64(len("hello")+len("world")) {
		t.Errorf("size = %d", node.Meta.Numbers["size"])
	}
	if node.Meta.Bools["is_encrypted"] {
		t.Error("plain archive flagged encrypted")
	}
	if node.Meta.Bools["is_multi_volume"] {
		t.Error("single archive flagged multi-volume")
	}
}

func TestArchiveAnalyzer_EncryptedZipFlag(t *testing.T) {
	node := archiveNode(buildEncryptedZip(t, "abcd"), nil)
	if err := (ArchiveAnalyzer{}).Analyze(node); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !node.Meta.Bools["is_encrypted"] {
		t.Error("encrypted archive not flagged")
	}
}

func TestWrongPassword_Classification(t *testing.T) {
	if !wrongPassword(errWrongPassword) {
		t.Error("sentinel not recognized")
	}
	if !wrongPassword(memberError(true, "x", errors.New("invalid checksum"))) {
		t.Error("read failure on an encrypted member must advance the password loop")
	}
	if wrongPassword(errors.New("unexpected EOF")) {
		t.Error("unrelated failures must abort, not advance")
	}
}

func TestStripArchiveExt(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a.tar.gz", "a.tar"},
		{"notes.txt.xz", "notes.txt"},
		{"plain", "plain"},
		{"", "stream"},
	}
	for _, c := range cases {
		if got := stripArchiveExt(c.in); got != c.want {
			t.Errorf("stripArchiveExt(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
