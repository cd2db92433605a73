package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reconstruct stitches the source windows back together with overlaps removed.
func reconstruct(text string, chunks []TextChunk) string {
	runes := []rune(text)
	var sb strings.Builder
	prevEnd := 0
	for _, c := range chunks {
		if c.End > prevEnd {
			from := max(c.Start, prevEnd)
			sb.WriteString(string(runes[from:c.End]))
			prevEnd = c.End
		}
	}
	return sb.String()
}

func TestChunk_Defaults(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 1000, opts.ChunkSize)
	assert.Equal(t, 200, opts.ChunkOverlap)

	chunks := Chunk(strings.Repeat("a", 2500), Options{})
	require.NotEmpty(t, chunks)
	assert.Len(t, []rune(chunks[0].Content), DefaultChunkSize)
}

func TestChunk_SingleShortDocument(t *testing.T) {
	text := "The mitochondria is the powerhouse of the cell."

	chunks := Chunk(text, DefaultOptions())

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len([]rune(text)), chunks[0].End)
	assert.Positive(t, chunks[0].TokenCount)
}

func TestChunk_CoverageReconstructsText(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		size    int
		overlap int
	}{
		{"no overlap", strings.Repeat("abcdefghij", 37), 50, 0},
		{"default ratio", strings.Repeat("photosynthesis-", 200), 100, 20},
		{"overlap near size", strings.Repeat("xyz", 101), 10, 9},
		{"multibyte", strings.Repeat("größe-ß-漢字", 40), 17, 5},
		{"exact multiple", strings.Repeat("q", 400), 100, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := Chunk(tc.text, Options{ChunkSize: tc.size, ChunkOverlap: tc.overlap})
			require.NotEmpty(t, chunks)
			assert.Equal(t, tc.text, reconstruct(tc.text, chunks))

			// Without whitespace at the window edges the contents are the windows.
			runes := []rune(tc.text)
			for _, c := range chunks {
				assert.Equal(t, string(runes[c.Start:c.End]), c.Content)
			}
			for i := 1; i < len(chunks); i++ {
				shared := chunks[i-1].End - chunks[i].Start
				assert.Equal(t, tc.overlap, shared, "chunk %d overlap", i)
			}
		})
	}
}

func TestChunk_IndicesContiguousAndIncreasing(t *testing.T) {
	text := strings.Repeat("Cells divide by mitosis. ", 300)
	chunks := Chunk(text, Options{ChunkSize: 120, ChunkOverlap: 30})

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.GreaterOrEqual(t, c.Index, 0)
		assert.Less(t, c.Index, len(chunks))
		if i > 0 {
			assert.Greater(t, c.Start, chunks[i-1].Start)
		}
	}
}

func TestChunk_DegenerateOverlapTerminates(t *testing.T) {
	text := strings.Repeat("enzyme ", 30)

	for _, overlap := range []int{10, 11, 50} {
		chunks := Chunk(text, Options{ChunkSize: 10, ChunkOverlap: overlap})
		require.NotEmpty(t, chunks)
		for i := 1; i < len(chunks); i++ {
			assert.Greater(t, chunks[i].Start, chunks[i-1].Start)
		}
		assert.Equal(t, len([]rune(text)), chunks[len(chunks)-1].End)
	}
}

func TestChunk_WhitespaceOnly(t *testing.T) {
	assert.Empty(t, Chunk("", DefaultOptions()))
	assert.Empty(t, Chunk("   \n\n\t  ", DefaultOptions()))
	assert.Empty(t, Chunk(strings.Repeat(" ", 5000), Options{ChunkSize: 100, ChunkOverlap: 10}))
}

func TestChunk_TrimsAndDropsBlankWindows(t *testing.T) {
	text := "alpha" + strings.Repeat(" ", 30) + "omega"
	chunks := Chunk(text, Options{ChunkSize: 10, ChunkOverlap: 0})

	require.Len(t, chunks, 2)
	assert.Equal(t, "alpha", chunks[0].Content)
	assert.Equal(t, "omega", chunks[1].Content)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestChunk_Deterministic(t *testing.T) {
	text := strings.Repeat("Krebs cycle produces ATP. ", 80)
	opts := Options{ChunkSize: 64, ChunkOverlap: 16}
	assert.Equal(t, Chunk(text, opts), Chunk(text, opts))
}

func TestTexts(t *testing.T) {
	chunks := Chunk("one two three four", Options{ChunkSize: 9, ChunkOverlap: 0})
	assert.Equal(t, []string{"one two t", "hree four"}, Texts(chunks))
}
