package service

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// ParseFilterWords splits the comma-separated filter_words setting, trimming
// entries and dropping blanks.
func ParseFilterWords(raw string) []string {
	var words []string
	for _, w := range strings.Split(raw, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// WordFilter masks every case-insensitive literal occurrence of its words with
// a run of '*' as long as the matched text.
type WordFilter struct {
	patterns []*regexp.Regexp
}

// NewWordFilter compiles words. Words are matched literally, so regexp
// metacharacters in a word carry no special meaning.
func NewWordFilter(words []string) *WordFilter {
	f := &WordFilter{patterns: make([]*regexp.Regexp, 0, len(words))}
	for _, w := range words {
		f.patterns = append(f.patterns, regexp.MustCompile("(?i)"+regexp.QuoteMeta(w)))
	}
	return f
}

// Mask applies the words in order. An empty filter returns text unchanged.
func (f *WordFilter) Mask(text string) string {
	if f == nil {
		return text
	}
	for _, p := range f.patterns {
		text = p.ReplaceAllStringFunc(text, func(m string) string {
			return strings.Repeat("*", utf8.RuneCountInString(m))
		})
	}
	return text
}

// filterCache keeps the filter compiled from the last filter_words value seen,
// so an unchanged setting is not recompiled per message.
type filterCache struct {
	mu     sync.Mutex
	raw    string
	filter *WordFilter
}

func (c *filterCache) get(raw string) *WordFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filter == nil || c.raw != raw {
		c.raw = raw
		c.filter = NewWordFilter(ParseFilterWords(raw))
	}
	return c.filter
}
