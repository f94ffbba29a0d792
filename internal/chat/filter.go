package chat

import (
	"strings"
	"unicode/utf8"

	"voxelsession.ai/internal/dispatch"
)

type FilteredText struct {
	Raw      string
	Filtered string
}

func (f FilteredText) Masked() bool { return f.Raw != f.Filtered }

// TextFilter checks chat text, possibly off the calling goroutine.
type TextFilter interface {
	Filter(player string, text string) *dispatch.Future[FilteredText]
}

type PassThrough struct{}

func (PassThrough) Filter(_ string, text string) *dispatch.Future[FilteredText] {
	return dispatch.Resolved(FilteredText{Raw: text, Filtered: text})
}

// WordFilter masks configured words (case-insensitive) with '*'.
type WordFilter struct {
	words []string
}

func NewWordFilter(words []string) *WordFilter {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return &WordFilter{words: out}
}

func (f *WordFilter) Filter(_ string, text string) *dispatch.Future[FilteredText] {
	return dispatch.Go(func() (FilteredText, error) {
		return FilteredText{Raw: text, Filtered: f.mask(text)}, nil
	})
}

func (f *WordFilter) mask(text string) string {
	if len(f.words) == 0 {
		return text
	}
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		// Case folding changed byte offsets; match on the raw text instead.
		lower = text
	}
	out := []byte(text)
	for _, w := range f.words {
		for i := 0; ; {
			j := strings.Index(lower[i:], w)
			if j < 0 {
				break
			}
			start := i + j
			for k := start; k < start+len(w); k++ {
				out[k] = '*'
			}
			i = start + len(w)
		}
	}
	if !utf8.Valid(out) {
		return strings.ToValidUTF8(string(out), "*")
	}
	return string(out)
}

// Illegal reports text a client may not send: control characters, the
// formatting sign, or more than maxLen runes.
func Illegal(text string, maxLen int) bool {
	if utf8.RuneCountInString(text) > maxLen {
		return true
	}
	for _, r := range text {
		if r < 32 || r == 127 || r == '§' {
			return true
		}
	}
	return false
}
