package textextract

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract_DOCXParagraphs(t *testing.T) {
	data := docx(t, `<w:p><w:r><w:t>Cell biology</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t xml:space="preserve">Mitochondria </w:t></w:r><w:r><w:t>make ATP &amp; heat.</w:t></w:r></w:p>`)

	res, err := Extract(bytes.NewReader(data), int64(len(data)), "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	require.NoError(t, err)
	assert.Equal(t, "Cell biology\nMitochondria make ATP & heat.", res.Content)
	assert.Equal(t, "docx", res.Metadata["type"])
}

func TestExtract_DOCXWithoutBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Extract(bytes.NewReader(buf.Bytes()), int64(buf.Len()), ".docx")
	assert.Error(t, err)
}

func TestExtract_TextAndMarkdown(t *testing.T) {
	for _, ft := range []string{"txt", ".md", "text/plain"} {
		data := []byte("\xef\xbb\xbf  # Osmosis\n\nWater moves across membranes.  \n")
		res, err := Extract(bytes.NewReader(data), int64(len(data)), ft)
		require.NoError(t, err, ft)
		assert.Equal(t, "# Osmosis\n\nWater moves across membranes.", res.Content)
	}
}

func TestExtract_Empty(t *testing.T) {
	data := []byte(" \n\t ")
	_, err := Extract(bytes.NewReader(data), int64(len(data)), ".txt")
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := Extract(bytes.NewReader(nil), 0, ".pptx")
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestExtract_BrokenPDF(t *testing.T) {
	data := []byte("not a pdf")
	_, err := Extract(bytes.NewReader(data), int64(len(data)), ".pdf")
	assert.Error(t, err)
}

func TestTypeFromName(t *testing.T) {
	assert.Equal(t, ".pdf", TypeFromName("Biology Notes.PDF"))
	assert.Equal(t, ".md", TypeFromName("summary.md"))
	assert.Equal(t, "", TypeFromName("slides.pptx"))
	assert.Equal(t, "", TypeFromName("README"))
}
