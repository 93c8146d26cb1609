package storage

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/google/uuid"
)

var ErrInvalidKey = errors.New("invalid blob key")

// BlobStore holds extracted document text handed over by ingestion.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
}

// NewTextKey returns a fresh key under texts/.
func NewTextKey() string { return "texts/" + uuid.NewString() + ".txt" }

// ReadText loads a stored document. Texts over limit bytes or that are not
// valid UTF-8 are rejected; limit <= 0 means no limit.
func ReadText(s BlobStore, key string, limit int64) (string, error) {
	rc, err := s.Get(key)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if limit > 0 && int64(len(b)) > limit {
		return "", fmt.Errorf("text %q exceeds %d bytes", key, limit)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("text %q is not valid UTF-8", key)
	}
	return string(b), nil
}
