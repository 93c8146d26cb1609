package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/mind-engage/rubricscore/internal/storage"
)

// MaxTextBytes bounds a stored or inline document.
const MaxTextBytes = 4 << 20

func MountDocuments(r chi.Router, bs storage.BlobStore) {
	// POST /documents  (multipart "file" or a text/plain body) -> {"key": ...}
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var src io.Reader = r.Body
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", http.StatusBadRequest)
				return
			}
			defer f.Close()
			src = f
		}
		b, err := io.ReadAll(io.LimitReader(src, MaxTextBytes+1))
		if err != nil {
			http.Error(w, "read error: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(b) > MaxTextBytes {
			http.Error(w, fmt.Sprintf("document exceeds %d bytes", MaxTextBytes), http.StatusRequestEntityTooLarge)
			return
		}
		if !utf8.Valid(b) {
			http.Error(w, "document is not valid UTF-8", http.StatusUnprocessableEntity)
			return
		}
		key := storage.NewTextKey()
		if _, err := bs.Put(key, bytes.NewReader(b)); err != nil {
			http.Error(w, "store error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"key": key})
	})

	// GET /documents/*  -> the stored text
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		text, err := storage.ReadText(bs, key, MaxTextBytes)
		if err != nil {
			http.Error(w, "document: "+err.Error(), textErrStatus(err))
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, text)
	})
}

func textErrStatus(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
