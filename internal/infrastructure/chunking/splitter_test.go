package chunking

import (
	"strings"
	"testing"
)

func TestSplitEmpty(t *testing.T) {
	s := NewSplitter(100, 20)
	if got := s.Split(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := s.Split("   \n "); len(got) != 0 {
		t.Fatalf("expected no chunks for whitespace input, got %v", got)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(100, 20)
	got := s.Split("short passage")
	if len(got) != 1 || got[0] != "short passage" {
		t.Fatalf("expected the text unchanged, got %v", got)
	}
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	s := NewSplitter(50, 10)
	text := strings.Repeat("abcdefghij", 20)

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-10:]
		if !strings.HasPrefix(chunks[i], tail) {
			t.Fatalf("chunk %d does not start with previous tail %q", i, tail)
		}
	}
}

func TestSplitSnapsToParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("a", 80)
	para2 := strings.Repeat("b", 80)
	s := NewSplitter(100, 0)

	chunks := s.Split(para1 + "\n\n" + para2)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != para1 {
		t.Fatalf("first chunk must end at the paragraph break, got %q", chunks[0])
	}
	if chunks[1] != para2 {
		t.Fatalf("second chunk must be the second paragraph, got %q", chunks[1])
	}
}

func TestSplitSnapsToSentenceEnd(t *testing.T) {
	sentence := strings.Repeat("w", 70) + ". "
	s := NewSplitter(100, 0)

	chunks := s.Split(sentence + strings.Repeat("x", 90))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Fatalf("first chunk must end at the sentence boundary, got %q", chunks[0])
	}
}

func TestSplitUnicodeSafe(t *testing.T) {
	s := NewSplitter(10, 2)
	chunks := s.Split(strings.Repeat("щ", 25))
	for i, chunk := range chunks {
		if strings.ContainsRune(chunk, '�') {
			t.Fatalf("chunk %d contains a broken rune: %q", i, chunk)
		}
	}
}

func TestNewSplitterClampsOverlap(t *testing.T) {
	s := NewSplitter(100, 200)
	if s.Overlap >= s.ChunkSize {
		t.Fatalf("overlap %d must be below chunk size %d", s.Overlap, s.ChunkSize)
	}
}
