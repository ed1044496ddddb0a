package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/exp/mmap"

	"github.com/relaxcloud/whisperd/internal/whisper"
)

// whisperRequest mirrors the RPC request shape: exactly one of
// file_path and file_content must be set.
type whisperRequest struct {
	FilePath     string   `json:"file_path,omitempty"`
	FileContent  []byte   `json:"file_content,omitempty"`
	Passwords    []string `json:"passwords,omitempty"`
	RootID       *int64   `json:"root_id,omitempty"`
	PDFMaxPages  *int     `json:"pdf_max_pages,omitempty"`
	WordMaxPages *int     `json:"word_max_pages,omitempty"`
}

func (s *Server) handleWhisper(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)

	var req whisperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.FilePath == "" && req.FileContent == nil {
		jsonError(w, "no file data provided", http.StatusBadRequest)
		return
	}
	if req.FilePath != "" && req.FileContent != nil {
		jsonError(w, "file_path and file_content are mutually exclusive", http.StatusBadRequest)
		return
	}

	// One slot per request end to end, like a bounded RPC thread pool.
	if err := s.workers.Acquire(r.Context(), 1); err != nil {
		jsonError(w, "request canceled", http.StatusInternalServerError)
		return
	}
	defer s.workers.Release(1)

	filePath := "memory_file"
	content := req.FileContent
	if req.FilePath != "" {
		filePath = req.FilePath
		var err error
		content, err = mmapRead(filePath)
		if err != nil {
			s.log.Error("file read failed", "path", filePath, "error", err)
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	if s.cfg.DebugBackupDir != "" {
		s.backupRequestFile(content, filePath)
	}

	tree, err := s.pool.Acquire(r.Context())
	if err != nil {
		s.log.Error("engine acquire failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer s.pool.Release(tree)

	root := whisper.NewRoot(&whisper.File{
		Path:    filePath,
		Name:    filepath.Base(filePath),
		Content: content,
	}, req.Passwords)
	if req.RootID != nil {
		root.ID = *req.RootID
	}
	if req.PDFMaxPages != nil {
		root.PDFMaxPages = *req.PDFMaxPages
	}
	if req.WordMaxPages != nil {
		root.WordMaxPages = *req.WordMaxPages
	}

	if err := tree.Digest(r.Context(), root); err != nil {
		s.log.Error("dissection failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	reply, err := s.serializer.Serialize(tree.Root())
	if err != nil {
		s.log.Error("serialization failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(reply); err != nil {
		s.log.Error("reply encoding failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if body.Len() > maxMessageBytes {
		jsonError(w, fmt.Sprintf("reply of %d bytes exceeds the message limit", body.Len()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"pool_size": s.pool.Size(),
		"batch":     s.batch.Status(),
	})
}

// mmapRead pulls the whole file through a memory mapping.
func mmapRead(path string) ([]byte, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	content := make([]byte, r.Len())
	if _, err := r.ReadAt(content, 0); err != nil && r.Len() > 0 {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return content, nil
}

// backupRequestFile mirrors the incoming file into the debug directory
// with a timestamp-prefixed name. Failures are logged, never surfaced.
func (s *Server) backupRequestFile(content []byte, filePath string) {
	if err := os.MkdirAll(s.cfg.DebugBackupDir, 0o755); err != nil {
		s.log.Error("backup dir create failed", "error", err)
		return
	}
	now := time.Now()
	name := fmt.Sprintf("%s_%06d_%s", now.Format("20060102_150405"), now.Nanosecond()/1000, filepath.Base(filePath))
	if err := os.WriteFile(filepath.Join(s.cfg.DebugBackupDir, name), content, 0o644); err != nil {
		s.log.Error("backup write failed", "error", err)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
