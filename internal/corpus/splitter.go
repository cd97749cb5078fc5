package corpus

import (
	"fmt"
	"strings"
)

// Splitter cuts document text into fixed-size windows that overlap by a fixed
// number of characters, so context at window boundaries is never lost.
type Splitter struct {
	maxChars int
	overlap  int
}

// NewSplitter validates the window parameters. overlap must be smaller than
// maxChars or the split loop would never advance.
func NewSplitter(maxChars, overlap int) (*Splitter, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("max chars must be positive, got %d", maxChars)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must not be negative, got %d", overlap)
	}
	if overlap >= maxChars {
		return nil, fmt.Errorf("overlap (%d) must be smaller than max chars (%d)", overlap, maxChars)
	}
	return &Splitter{maxChars: maxChars, overlap: overlap}, nil
}

// Split returns the chunk texts of text in document order. Windows are
// measured in runes so multi-byte characters are never cut in half.
// Whitespace-only windows are dropped; empty text yields nil; text shorter
// than one window yields exactly one chunk.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.maxChars - s.overlap
	var out []string
	for i := 0; i < len(runes); i += step {
		end := min(i+s.maxChars, len(runes))
		window := string(runes[i:end])
		if strings.TrimSpace(window) != "" {
			out = append(out, window)
		}
	}
	return out
}
