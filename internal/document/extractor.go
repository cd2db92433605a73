package document

import (
	"bytes"
	"context"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/pkg/textextract"
)

// TextExtractor turns an uploaded file into plain text. Every failure is an
// *apperr.ExtractionFailure.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, fileType string) (string, error)
	SupportedTypes() []string
}

type extractor struct{}

func NewTextExtractor() TextExtractor {
	return extractor{}
}

func (extractor) Extract(ctx context.Context, data []byte, fileType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	result, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), fileType)
	if err != nil {
		return "", &apperr.ExtractionFailure{FileType: fileType, Err: err}
	}
	return result.Content, nil
}

func (extractor) SupportedTypes() []string {
	return textextract.SupportedTypes()
}
