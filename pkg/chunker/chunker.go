package chunker

import (
	"strings"

	"github.com/nikhilbhutani/revisionrag/pkg/tokenizer"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Options control the window size and overlap, both measured in characters (runes).
type Options struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

// TextChunk is one trimmed window of the input. Start and End are the rune
// offsets of the untrimmed window in the source text.
type TextChunk struct {
	Content    string
	Index      int
	Start      int
	End        int
	TokenCount int
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

func (o Options) normalize() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkOverlap < 0 {
		o.ChunkOverlap = 0
	}
	return o
}

// Chunk splits text into overlapping windows of opts.ChunkSize runes. Each
// window after the first starts ChunkOverlap runes before the previous window
// ended, but always at least one rune after the previous start, so an overlap
// >= ChunkSize still terminates. Whitespace-only windows are dropped and
// indices stay contiguous over the emitted chunks.
func Chunk(text string, opts Options) []TextChunk {
	opts = opts.normalize()

	runes := []rune(text)
	n := len(runes)
	var chunks []TextChunk

	for start := 0; start < n; {
		end := start + opts.ChunkSize
		if end > n {
			end = n
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, TextChunk{
				Content:    content,
				Index:      len(chunks),
				Start:      start,
				End:        end,
				TokenCount: tokenizer.CountTokens(content),
			})
		}

		if end == n {
			break
		}

		next := end - opts.ChunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// Texts returns the chunk contents in order.
func Texts(chunks []TextChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}
