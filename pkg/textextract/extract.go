package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrEmpty is returned when a file parses but holds no readable text, as
// with scanned PDFs that have no text layer.
var ErrEmpty = errors.New("no text found")

// ErrUnsupported is returned for file types with no extractor.
var ErrUnsupported = errors.New("unsupported file type")

type ExtractedText struct {
	Content  string
	Pages    int
	Metadata map[string]string
}

// Extract reads the text of a document. fileType may be an extension with
// or without the dot, or a MIME type.
func Extract(data io.ReaderAt, size int64, fileType string) (*ExtractedText, error) {
	var (
		res *ExtractedText
		err error
	)
	switch Normalize(fileType) {
	case ".pdf":
		res, err = extractPDF(data, size)
	case ".docx":
		res, err = extractDOCX(data, size)
	case ".txt", ".md":
		res, err = extractTXT(data, size, Normalize(fileType))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, fileType)
	}
	if err != nil {
		return nil, err
	}
	res.Content = strings.TrimSpace(res.Content)
	if res.Content == "" {
		return nil, ErrEmpty
	}
	return res, nil
}

func SupportedTypes() []string {
	return []string{".pdf", ".docx", ".txt", ".md"}
}

// Normalize maps an extension or MIME type to a dotted lowercase
// extension, or "" when it is not recognised.
func Normalize(fileType string) string {
	t := strings.ToLower(strings.TrimSpace(fileType))
	switch t {
	case ".pdf", "pdf", "application/pdf":
		return ".pdf"
	case ".docx", "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case ".txt", "txt", "text/plain":
		return ".txt"
	case ".md", "md", "markdown", "text/markdown":
		return ".md"
	}
	return ""
}

// TypeFromName returns the normalized type of a file name's extension.
func TypeFromName(name string) string {
	return Normalize(filepath.Ext(name))
}

func extractPDF(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return &ExtractedText{
		Content: buf.String(),
		Pages:   numPages,
		Metadata: map[string]string{
			"type": "pdf",
		},
	}, nil
}

func extractDOCX(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()

		text, err := docxText(rc)
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		return &ExtractedText{
			Content: text,
			Pages:   1,
			Metadata: map[string]string{
				"type": "docx",
			},
		}, nil
	}
	return nil, fmt.Errorf("open DOCX: word/document.xml not found")
}

// docxText keeps the text runs (w:t) and ends each paragraph (w:p) with a
// newline, so headings and list items stay on their own lines.
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		buf    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				buf.WriteByte('\t')
			case "br":
				buf.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				buf.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}
	return buf.String(), nil
}

func extractTXT(data io.ReaderAt, size int64, fileType string) (*ExtractedText, error) {
	buf := make([]byte, size)
	_, err := data.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", strings.TrimPrefix(fileType, "."), err)
	}
	buf = bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(buf) {
		buf = bytes.ToValidUTF8(buf, []byte("�"))
	}

	return &ExtractedText{
		Content: string(buf),
		Pages:   1,
		Metadata: map[string]string{
			"type": strings.TrimPrefix(fileType, "."),
		},
	}, nil
}
