package apitest

import (
	"io"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"
)

type object struct {
	data        []byte
	contentType string
	expiresAt   time.Time // presign deadline; zero once uploaded
	uploaded    bool
}

func (s *Server) handlePresign(w http.ResponseWriter, r *http.Request, acc *account) {
	var in struct {
		FileName    string `json:"fileName"`
		ContentType string `json:"contentType"`
		Size        int64  `json:"size"`
		Purpose     string `json:"purpose"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.FileName == "" || in.ContentType == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "fileName and contentType are required")
		return
	}
	if in.Purpose == "" {
		in.Purpose = "misc"
	}

	key := path.Join(in.Purpose, acc.ID, uuid.NewString()+"-"+path.Base(in.FileName))
	expires := time.Now().UTC().Add(defaultPresignTTL)

	s.mu.Lock()
	s.objects[key] = object{contentType: in.ContentType, expiresAt: expires}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"uploadUrl": s.URL + "/storage/" + key,
		"fileUrl":   s.URL + "/files/" + key,
		"key":       key,
		"method":    http.MethodPut,
		"headers":   map[string]string{"Content-Type": in.ContentType},
		"expiresAt": expires,
	})
}

// handleStoragePut plays the object store: it accepts only presigned keys and refuses
// requests that carry an Authorization header, as a signed URL would.
func (s *Server) handleStoragePut(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "" {
		writeError(w, http.StatusBadRequest, "unexpected_authorization", "presigned uploads must not carry credentials")
		return
	}
	key := r.PathValue("key")

	s.mu.Lock()
	obj, ok := s.objects[key]
	s.mu.Unlock()
	switch {
	case !ok || obj.uploaded:
		writeError(w, http.StatusForbidden, "signature_mismatch", "unknown upload key")
		return
	case time.Now().After(obj.expiresAt):
		writeError(w, http.StatusForbidden, "expired", "presigned url expired")
		return
	case r.Header.Get("Content-Type") != obj.contentType:
		writeError(w, http.StatusForbidden, "signature_mismatch", "content type does not match the signed value")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	s.mu.Lock()
	s.objects[key] = object{data: data, contentType: obj.contentType, uploaded: true}
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleFileGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	obj, ok := s.objects[r.PathValue("key")]
	s.mu.Unlock()
	if !ok || !obj.uploaded {
		writeError(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	w.Header().Set("Content-Type", obj.contentType)
	_, _ = w.Write(obj.data)
}

// Object returns an uploaded file by key.
func (s *Server) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok || !obj.uploaded {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}
