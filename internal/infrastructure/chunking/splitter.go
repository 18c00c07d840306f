package chunking

import "strings"

const (
	defaultChunkSize = 900
	// boundaryWindow is how far back from the hard cut the splitter looks for
	// a paragraph or sentence break before falling back to a mid-word cut.
	boundaryWindow = 120
)

// Splitter cuts extracted text into overlapping rune windows, snapping each
// cut to the nearest paragraph or sentence boundary when one is close enough.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
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

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapToBoundary(runes, start, end)
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
			next = start + step
		}
		start = next
	}
	return out
}

// snapToBoundary moves the cut backwards to the closest paragraph break, then
// sentence end, within boundaryWindow runes. A cut with no nearby boundary
// stays where it is.
func snapToBoundary(runes []rune, start, end int) int {
	low := end - boundaryWindow
	if low < start+1 {
		low = start + 1
	}

	for i := end - 1; i >= low; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i
		}
	}
	for i := end - 1; i >= low; i-- {
		switch runes[i] {
		case '.', '!', '?':
			return i + 1
		case '\n':
			return i
		}
	}
	return end
}
