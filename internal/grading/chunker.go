package grading

import (
	"errors"
	"fmt"
)

const (
	DefaultWindowSize     = 1600
	DefaultWindowOverlap  = 400
	DefaultChunkThreshold = 2000
)

// Window sizes the sliding window in characters.
type Window struct {
	Size    int `json:"size"`
	Overlap int `json:"overlap"`
}

func DefaultWindow() Window { return Window{Size: DefaultWindowSize, Overlap: DefaultWindowOverlap} }

// Validate rejects windows that would not advance.
func (w Window) Validate() error {
	if w.Size <= 0 {
		return errors.New("window size must be positive")
	}
	if w.Overlap < 0 {
		return errors.New("window overlap must not be negative")
	}
	if w.Overlap >= w.Size {
		return fmt.Errorf("window overlap %d must be smaller than size %d", w.Overlap, w.Size)
	}
	return nil
}

// Step is how far each window start advances.
func (w Window) Step() int { return w.Size - w.Overlap }

// Chunk is one window of the document. Start and End are character offsets.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// Split cuts text into overlapping windows. Offsets count runes so multi-byte
// characters are never cut in half. The last chunk may be shorter than
// w.Size. Windows start every w.Step() runes until the start passes the end
// of the text, so the tail can be covered twice. An invalid window yields an
// error instead of looping forever.
func Split(text string, w Window) ([]Chunk, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	rs := []rune(text)
	n := len(rs)
	chunks := make([]Chunk, 0, n/w.Step()+1)
	for start := 0; start < n; start += w.Step() {
		end := start + w.Size
		if end > n {
			end = n
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: end, Text: string(rs[start:end])})
	}
	return chunks, nil
}

// charLen is the text length as Split counts it.
func charLen(s string) int { return len([]rune(s)) }
