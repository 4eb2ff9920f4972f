package kb

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/faqrag/internal/models"
)

// columnNames maps header cells to record fields.
var columnNames = map[string]string{
	"question": "question",
	"вопрос":   "question",
	"answer":   "answer",
	"ответ":    "answer",
	"url":      "url",
	"link":     "url",
	"ссылка":   "url",
}

// loadExcel reads records from the first sheet. When the first row names the columns
// they are matched by header; otherwise columns A, B and C hold question, answer and url.
func loadExcel(content []byte) ([]models.RawRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: open Excel: %w", models.ErrLoad, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", models.ErrLoad)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: get rows for sheet %q: %w", models.ErrLoad, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := map[string]int{"question": 0, "answer": 1, "url": 2}
	if header := headerColumns(rows[0]); header != nil {
		cols = header
		rows = rows[1:]
	}

	records := make([]models.RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.RawRecord{
			Question: cell(row, cols["question"]),
			Answer:   cell(row, cols["answer"]),
			URL:      cell(row, cols["url"]),
		})
	}
	return records, nil
}

func headerColumns(row []string) map[string]int {
	cols := map[string]int{"question": -1, "answer": -1, "url": -1}
	found := false
	for i, name := range row {
		if field, ok := columnNames[strings.ToLower(strings.TrimSpace(name))]; ok {
			cols[field] = i
			found = true
		}
	}
	if !found {
		return nil
	}
	return cols
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
