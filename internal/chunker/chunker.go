// Package chunker splits oversized text into chunks the graph gateway can
// ingest in one call.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// SplitIntoChunks splits text on sentence boundaries into chunks of at most
// maxChunkSize characters. Text that already fits is returned unchanged as a
// single chunk. Otherwise sentences (terminated by runs of '.', '!' or '?')
// are trimmed, re-suffixed with a period and packed greedily, separated by
// a single space. A sentence longer than maxChunkSize is emitted on its own
// and is not split further, so the bound is soft.
func SplitIntoChunks(text string, maxChunkSize int) []string {
	if utf8.RuneCountInString(text) <= maxChunkSize {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	size := 0 // characters in current

	for _, s := range sentences(text) {
		sentence := s + "."
		n := utf8.RuneCountInString(sentence)
		if size > 0 && size+1+n > maxChunkSize {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(sentence)
		size += n
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// sentences returns the trimmed, non-empty fragments between terminators.
func sentences(text string) []string {
	parts := strings.FieldsFunc(text, isTerminator)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
