package whisper

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/saintfish/chardet"
)

var (
	idOnce sync.Once
	idNode *snowflake.Node
)

// NextID issues a process-wide unique, monotonic 63-bit id. Safe under
// concurrent callers; the machine id is fixed at first use.
func NextID() int64 {
	idOnce.Do(func() {
		n, err := snowflake.NewNode(1)
		if err != nil {
			panic("whisper: snowflake init: " + err.Error())
		}
		idNode = n
	})
	return idNode.Generate().Int64()
}

// NewUUID returns a fresh v4 UUID string.
func NewUUID() string {
	return uuid.NewString()
}

// hashFile fills in size and the md5/sha1/sha256 hex digests of a file
// payload in a single pass over the content.
func hashFile(f *File) {
	f.Size = int64(len(f.Content))

	m := md5.New()
	s1 := sha1.New()
	s256 := sha256.New()
	w := io.MultiWriter(m, s1, s256)
	w.Write(f.Content)

	f.MD5 = hex.EncodeToString(m.Sum(nil))
	f.SHA1 = hex.EncodeToString(s1.Sum(nil))
	f.SHA256 = hex.EncodeToString(s256.Sum(nil))
}

// detectEncoding probes the charset of a data payload and publishes the
// outcome on the node's meta. File payloads skip this (too costly for
// what it yields).
func detectEncoding(meta *Meta, content []byte) {
	if len(content) == 0 {
		meta.Strings["encoding"] = "NONE"
		meta.Strings["encoding_detect_msg"] = "Empty data"
		return
	}

	result, err := chardet.NewTextDetector().DetectBest(content)
	if err != nil {
		meta.Strings["encoding"] = "NONE"
		meta.Strings["encoding_detect_msg"] = "Detection error: " + err.Error()
		return
	}
	if result == nil || result.Charset == "" {
		meta.Strings["encoding"] = "NONE"
		meta.Strings["encoding_detect_msg"] = "Could not detect encoding"
		return
	}

	meta.Strings["encoding"] = strings.ToLower(result.Charset)
	meta.Numbers["encoding_confidence"] = int64(result.Confidence)
}
