// Package chunker splits long text into overlapping word windows so an
// embedding backend with a bounded input size can handle arbitrary memories.
package chunker

import "strings"

const (
	DefaultWindowWords  = 200
	DefaultOverlapWords = 20
)

// Split breaks text into windows of at most window words, consecutive
// windows sharing overlap words. Text that fits one window is returned
// unchanged as a single chunk; blank text returns nil.
func Split(text string, window, overlap int) []string {
	if window <= 0 {
		window = DefaultWindowWords
	}
	if overlap < 0 || overlap >= window {
		overlap = DefaultOverlapWords
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	words := strings.Fields(text)
	if len(words) <= window {
		return []string{text}
	}

	step := window - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + window
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
