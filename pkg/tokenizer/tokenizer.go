package tokenizer

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoding = "cl100k_base"

var enc atomic.Pointer[tiktoken.Tiktoken]

// Init loads a tiktoken encoding for exact counts. tiktoken downloads the BPE
// ranks on first use (cached under TIKTOKEN_CACHE_DIR), so callers decide when
// that is allowed; until Init succeeds CountTokens uses the word estimate.
func Init(encoding string) error {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	e, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	enc.Store(e)
	return nil
}

// CountTokens returns the token count of text under the loaded encoding, or
// Estimate when none is loaded.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if e := enc.Load(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	return Estimate(text)
}

// Estimate is a rough ~4/3 tokens-per-word heuristic for English.
func Estimate(text string) int {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	return max(len(words)*4/3, 1)
}
