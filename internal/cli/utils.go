// Package cli formats command output for the faqrag binary.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/faqrag/internal/indexer"
	"github.com/hyperjump/faqrag/internal/models"
	"github.com/hyperjump/faqrag/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const previewLen = 200

const rule = "─────────────────────────────────────────────────────────"

// ParseOutputFormat accepts "text" or "json" (case-insensitive).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and its citations.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, ans)
	}
	fmt.Fprintf(w, "\n%s\n", ans.Text)
	if len(ans.Citations) > 0 {
		fmt.Fprintln(w, "\nИсточники:")
		for _, c := range ans.Citations {
			if c.URL != "" {
				fmt.Fprintf(w, "  • %s (%s)\n", c.Question, c.URL)
			} else {
				fmt.Fprintf(w, "  • %s\n", c.Question)
			}
		}
	}
	fmt.Fprintln(w)
	return nil
}

// WriteRetrieval writes ranked segments. When resp.Context is set, text output prints the
// assembled context instead of the segment list.
func WriteRetrieval(w io.Writer, resp *models.RetrieveResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nFound %d segments in %dms\n\n", len(resp.Results), resp.QueryTime)
	if resp.Context != "" {
		fmt.Fprintln(w, resp.Context)
		fmt.Fprintln(w)
		return nil
	}
	for _, r := range resp.Results {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", r.Rank, r.Score)
		fmt.Fprintf(w, "ID: %s\n", r.Segment.ID)
		fmt.Fprintf(w, "Question: %s\n", r.Segment.Metadata.Question)
		if r.Segment.Metadata.URL != "" {
			fmt.Fprintf(w, "URL: %s\n", r.Segment.Metadata.URL)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Segment.Content, previewLen))
	}
	return nil
}

// WriteStatus writes the served index and dialog log summary.
func WriteStatus(w io.Writer, status *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	idx := status.Index
	fmt.Fprintf(w, "Index:           %s\n", idx.Location)
	fmt.Fprintf(w, "  backend:       %s\n", idx.Backend)
	fmt.Fprintf(w, "  generation:    %s\n", idx.Generation)
	fmt.Fprintf(w, "  built:         %s\n", idx.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  embedding:     %s (%d dims)\n", idx.EmbeddingModel, idx.Dimensions)
	fmt.Fprintf(w, "  documents:     %d\n", idx.Documents)
	fmt.Fprintf(w, "  segments:      %d\n", idx.Segments)
	fmt.Fprintf(w, "  chunking:      size %d, overlap %d\n", idx.ChunkSize, idx.ChunkOverlap)
	fmt.Fprintf(w, "Model:           %s/%s (k=%d)\n", status.LLMProvider, status.LLMModel, status.DefaultK)
	if status.Dialogs != nil {
		fmt.Fprintf(w, "Dialogs:         %d (%d failed)\n", status.Dialogs.Total, status.Dialogs.Failed)
	}
	fmt.Fprintf(w, "Disk usage:      %d bytes\n", status.DiskUsageBytes)
	return nil
}

// WriteBuildReport writes the summary of an index build.
func WriteBuildReport(w io.Writer, report *indexer.BuildReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Index built at %s\n", report.Location)
	fmt.Fprintf(w, "  generation: %s (%s)\n", report.Generation, report.Backend)
	fmt.Fprintf(w, "  records:    %d\n", report.Records)
	fmt.Fprintf(w, "  documents:  %d\n", report.Documents)
	fmt.Fprintf(w, "  segments:   %d\n", report.Segments)
	fmt.Fprintf(w, "  dimensions: %d\n", report.Dimensions)
	fmt.Fprintf(w, "  took:       %s\n", report.Duration.Round(time.Millisecond))
	return nil
}
