package service

import "unicode/utf8"

// DefaultChunkSize is the chunk length in runes used when none is configured.
const DefaultChunkSize = 300

// ChunkText splits text into consecutive windows of size runes. The last
// window may be shorter. Chunks are slices of text, so joining the result
// reproduces it byte for byte; an invalid UTF-8 byte counts as one rune.
func ChunkText(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}

	chunks := make([]string, 0, (utf8.RuneCountInString(text)+size-1)/size)
	start, n := 0, 0
	for i := 0; i < len(text); {
		_, width := utf8.DecodeRuneInString(text[i:])
		i += width
		n++
		if n == size {
			chunks = append(chunks, text[start:i])
			start, n = i, 0
		}
	}
	if start < len(text) {
		chunks = append(chunks, text[start:])
	}
	return chunks
}
