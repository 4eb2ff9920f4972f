package indexer

import (
	"fmt"

	"github.com/hyperjump/faqrag/internal/docid"
	"github.com/hyperjump/faqrag/internal/models"
)

// Content labels used when rendering a record into document content.
const (
	QuestionLabel = "Вопрос:"
	AnswerLabel   = "Ответ:"
)

// FormatContent renders a question and answer into document content.
func FormatContent(question, answer string) string {
	return fmt.Sprintf("%s %s\n\n%s\n%s", QuestionLabel, question, AnswerLabel, answer)
}

// BuildDocuments normalizes raw records into documents. Records whose answer is empty
// after trimming are dropped; an empty question is kept. Source order is kept and a
// missing URL becomes the empty string.
func BuildDocuments(records []models.RawRecord) []models.Document {
	docs := make([]models.Document, 0, len(records))
	for i, rec := range records {
		q := Preprocess(rec.Question)
		a := Preprocess(rec.Answer)
		if a == "" {
			continue
		}
		url := Preprocess(rec.URL)
		docs = append(docs, models.Document{
			ID:      docid.DocumentID(i, q, url),
			Content: FormatContent(q, a),
			Metadata: models.Metadata{
				Question: q,
				URL:      url,
			},
		})
	}
	return docs
}
