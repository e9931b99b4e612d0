package postprocessors

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Chunker splits content into overlapping chunks.
// This is typically the first processor in the pipeline (Order = 0).
//
// Offsets are in runes. Every chunk after the first starts exactly Overlap
// runes before the previous chunk ends, so neighbours share Overlap characters.
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
// Returns domain.ErrInvalidConfiguration unless MaxChunkSize > Overlap >= 0.
func NewChunker(config ChunkConfig) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// Config returns the chunker configuration.
func (c *Chunker) Config() ChunkConfig {
	return c.config
}

// Process splits content into chunks.
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	position := 0

	for _, chunk := range chunks {
		structured := chunk.Metadata[metaStructured] == "true"
		newChunks := c.splitContent([]rune(chunk.Content), chunk.StartOffset, structured, &position)
		result = append(result, newChunks...)
	}

	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0 - chunker should be first.
func (c *Chunker) Order() int {
	return 0
}

// splitContent splits content into overlapping chunks.
func (c *Chunker) splitContent(content []rune, baseOffset int, structured bool, position *int) []driven.Chunk {
	n := len(content)
	if n == 0 {
		return nil
	}

	var protected []span
	if !structured {
		protected = structuredSpans(content)
	}

	var chunks []driven.Chunk
	start := 0

	for {
		end := start + c.config.MaxChunkSize
		if end >= n {
			chunks = append(chunks, c.newChunk(content, baseOffset, start, n, position))
			break
		}

		// The break must leave the chunk longer than the overlap so the next start advances
		lo := start + c.config.Overlap + 1
		lineOnly := structured || overlaps(protected, start, end)
		if bp := c.findBreakPoint(content, start, lo, end, lineOnly); bp > 0 {
			end = bp
		}

		chunks = append(chunks, c.newChunk(content, baseOffset, start, end, position))
		start = end - c.config.Overlap
	}

	return chunks
}

func (c *Chunker) newChunk(content []rune, baseOffset, start, end int, position *int) driven.Chunk {
	chunk := driven.Chunk{
		Content:     string(content[start:end]),
		Position:    *position,
		StartOffset: baseOffset + start,
		EndOffset:   baseOffset + end,
	}
	*position++
	return chunk
}

// findBreakPoint returns the best chunk end in [lo, maxEnd], or -1.
// Boundaries nearest to maxEnd win. Paragraph and sentence breaks are only
// taken from the back half of the chunk to avoid tiny chunks.
func (c *Chunker) findBreakPoint(content []rune, start, lo, maxEnd int, lineOnly bool) int {
	if lineOnly {
		if bp := lastBreak(content, lo, maxEnd, isLineBreak); bp > 0 {
			return bp
		}
		return lastBreak(content, lo, maxEnd, isSpaceBreak)
	}

	preferFrom := start + c.config.MaxChunkSize/2
	if preferFrom < lo {
		preferFrom = lo
	}

	// Try to break at paragraph boundary (double newline)
	if c.config.PreserveParagraphs {
		if bp := lastBreak(content, preferFrom, maxEnd, isParagraphBreak); bp > 0 {
			return bp
		}
	}

	// Try to break at sentence boundary
	if c.config.PreserveSentences {
		if bp := lastBreak(content, preferFrom, maxEnd, isSentenceBreak); bp > 0 {
			return bp
		}
	}

	// Try to break at word boundary
	return lastBreak(content, lo, maxEnd, isSpaceBreak)
}

// lastBreak scans backwards for the largest end e in [lo, hi] where isBreak(content, e) holds.
func lastBreak(content []rune, lo, hi int, isBreak func([]rune, int) bool) int {
	for e := hi; e >= lo; e-- {
		if isBreak(content, e) {
			return e
		}
	}
	return -1
}

// A chunk ending at e ends right after a "\n\n".
func isParagraphBreak(content []rune, e int) bool {
	return e >= 2 && content[e-1] == '\n' && content[e-2] == '\n'
}

// A chunk ending at e ends right after sentence punctuation and one whitespace.
func isSentenceBreak(content []rune, e int) bool {
	if e < 2 || !unicode.IsSpace(content[e-1]) {
		return false
	}
	switch content[e-2] {
	case '.', '!', '?':
		return true
	}
	return false
}

// A chunk ending at e ends right after a newline.
func isLineBreak(content []rune, e int) bool {
	return e >= 1 && content[e-1] == '\n'
}

// A chunk ending at e ends right after whitespace.
func isSpaceBreak(content []rune, e int) bool {
	return e >= 1 && unicode.IsSpace(content[e-1])
}

type span struct {
	start, end int
}

func overlaps(spans []span, start, end int) bool {
	for _, s := range spans {
		if s.start < end && start < s.end {
			return true
		}
	}
	return false
}

// structuredSpans finds fenced code blocks, markdown table rows and
// tab-separated rows. Those regions are only split between lines.
func structuredSpans(content []rune) []span {
	var spans []span
	inFence := false
	fenceStart := 0

	lineStart := 0
	for i := 0; i <= len(content); i++ {
		if i < len(content) && content[i] != '\n' {
			continue
		}
		line := strings.TrimSpace(string(content[lineStart:i]))
		lineEnd := i
		if i < len(content) {
			lineEnd = i + 1
		}

		switch {
		case strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~"):
			if inFence {
				spans = append(spans, span{fenceStart, lineEnd})
				inFence = false
			} else {
				inFence = true
				fenceStart = lineStart
			}
		case inFence:
		case strings.HasPrefix(line, "|"), strings.Contains(string(content[lineStart:i]), "\t"):
			spans = append(spans, span{lineStart, lineEnd})
		}

		lineStart = i + 1
	}

	if inFence {
		spans = append(spans, span{fenceStart, len(content)})
	}
	return spans
}
