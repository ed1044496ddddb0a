package whisper

import (
	"sync"
	"testing"
)

func TestHashFile_EmptyContent(t *testing.T) {
	f := &File{Content: nil}
	hashFile(f)

	if f.Size != 0 {
		t.Errorf("expected size 0, got %d", f.Size)
	}
	if f.MD5 != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("unexpected md5: %s", f.MD5)
	}
	if f.SHA1 != "da39a3ee5e6b4b0d3255bfef95601890afd80709" {
		t.Errorf("unexpected sha1: %s", f.SHA1)
	}
	if f.SHA256 != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("unexpected sha256: %s", f.SHA256)
	}
}

func TestHashFile_KnownVector(t *testing.T) {
	f := &File{Content: []byte("hello")}
	hashFile(f)

	if f.Size != 5 {
		t.Errorf("expected size 5, got %d", f.Size)
	}
	if f.MD5 != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("unexpected md5: %s", f.MD5)
	}
	if f.SHA256 != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("unexpected sha256: %s", f.SHA256)
	}
}

func TestDetectEncoding_EmptyData(t *testing.T) {
	meta := NewMeta()
	detectEncoding(&meta, nil)

	if meta.Strings["encoding"] != "NONE" {
		t.Errorf("expected NONE, got %q", meta.Strings["encoding"])
	}
	if meta.Strings["encoding_detect_msg"] != "Empty data" {
		t.Errorf("unexpected detect msg: %q", meta.Strings["encoding_detect_msg"])
	}
}

func TestDetectEncoding_ASCII(t *testing.T) {
	meta := NewMeta()
	detectEncoding(&meta, []byte("just some readable english text for the detector to chew on"))

	if meta.Strings["encoding"] == "NONE" || meta.Strings["encoding"] == "" {
		t.Fatalf("expected a detected encoding, got %q", meta.Strings["encoding"])
	}
	conf := meta.Numbers["encoding_confidence"]
	if conf < 0 || conf > 100 {
		t.Errorf("confidence out of range: %d", conf)
	}
}

func TestNextID_UniqueUnderConcurrency(t *testing.T) {
	const n = 200
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- NextID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		if id <= 0 {
			t.Fatalf("non-positive id: %d", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id: %d", id)
		}
		seen[id] = true
	}
}
