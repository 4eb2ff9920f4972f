package indexer

import "strings"

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Preprocess normalizes a record field: line endings become "\n" and surrounding
// whitespace is trimmed. Inner whitespace is kept so paragraph breaks survive chunking.
func Preprocess(text string) string {
	return strings.TrimSpace(newlineReplacer.Replace(text))
}
