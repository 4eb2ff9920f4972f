// Package rag assembles retrieved segments into a grounded prompt and composes the answer.
package rag

import (
	"fmt"
	"strings"

	"github.com/hyperjump/faqrag/internal/models"
)

// FragmentSeparator joins context fragments. Segment content never contains it on its
// own line: Assemble rewrites any such line.
const FragmentSeparator = "\n\n---\n\n"

const (
	fragmentLabel = "Фрагмент"
	sourceLabel   = "Источник:"
)

// Assemble renders retrieved segments, in rank order, as labeled context fragments.
// An empty result yields an empty string.
func Assemble(result models.RetrievedResult) string {
	if len(result) == 0 {
		return ""
	}
	parts := make([]string, 0, len(result))
	for i, r := range result {
		parts = append(parts, fmt.Sprintf("[%s %d] Вопрос: %s\n%s %s\n\n%s",
			fragmentLabel, i+1,
			r.Segment.Metadata.Question,
			sourceLabel, r.Segment.Metadata.URL,
			escapeSeparator(r.Segment.Content)))
	}
	return strings.Join(parts, FragmentSeparator)
}

// escapeSeparator replaces lines consisting of "---" so fragments stay unambiguous.
func escapeSeparator(content string) string {
	if !strings.Contains(content, "---") {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			lines[i] = "- - -"
		}
	}
	return strings.Join(lines, "\n")
}
