// Package tokenizer estimates token counts for backends that do not report usage.
package tokenizer

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

const encodingName = "cl100k_base"

var (
	encoding    *tiktoken.Tiktoken
	encodingErr error
	once        sync.Once
)

func load() (*tiktoken.Tiktoken, error) {
	once.Do(func() {
		encoding, encodingErr = tiktoken.GetEncoding(encodingName)
	})
	return encoding, encodingErr
}

// Count returns the cl100k_base token count of text. If the encoding cannot
// be loaded it falls back to one token per rune.
func Count(text string) int {
	if text == "" {
		return 0
	}
	enc, err := load()
	if err != nil {
		return utf8.RuneCountInString(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// CountAll sums Count over texts.
func CountAll(texts ...string) int {
	total := 0
	for _, text := range texts {
		total += Count(text)
	}
	return total
}
