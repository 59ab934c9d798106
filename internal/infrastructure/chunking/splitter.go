package chunking

import "strings"

const excerptSeparator = "\n\n[...]\n\n"

// Splitter cuts text into rune-bounded chunks, preferring to end a chunk at
// a line break when one falls in the last quarter of the window.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastBreak(runes[start:end]); cut > s.ChunkSize*3/4 {
			end = start + cut
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// Excerpt returns text unchanged when it fits in maxRunes. Longer text is
// reduced to evenly spaced chunks, always keeping the opening and the ending,
// joined by an elision marker.
func (s *Splitter) Excerpt(text string, maxRunes int) string {
	if maxRunes <= 0 || len([]rune(text)) <= maxRunes {
		return text
	}

	chunks := (&Splitter{ChunkSize: s.ChunkSize}).Split(text)
	keep := maxRunes / (s.ChunkSize + len([]rune(excerptSeparator)))
	if keep < 1 {
		return string([]rune(text)[:maxRunes])
	}
	if keep >= len(chunks) {
		return strings.Join(chunks, excerptSeparator)
	}
	if keep == 1 {
		return chunks[0]
	}

	picked := make([]string, 0, keep)
	last := len(chunks) - 1
	for i := 0; i < keep; i++ {
		picked = append(picked, chunks[i*last/(keep-1)])
	}
	return strings.Join(picked, excerptSeparator)
}

func lastBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '\n' {
			return i + 1
		}
	}
	return -1
}
