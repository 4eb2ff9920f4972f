package rag

import (
	"strings"

	"github.com/hyperjump/faqrag/internal/indexer"
	"github.com/hyperjump/faqrag/internal/llm"
)

// EscalationMessage is the exact reply given when the knowledge base does not cover a
// question. Consumers may match on it, so it must not change.
const EscalationMessage = "К сожалению, в базе знаний нет ответа на этот вопрос. Пожалуйста, обратитесь в службу поддержки."

// FailureNotice is shown to the user when an answer could not be produced.
const FailureNotice = "Не получилось получить ответ от модели. Попробуй ещё раз чуть позже."

// SystemPrompt instructs the model to answer from the supplied context only.
const SystemPrompt = "Ты ассистент службы поддержки. " +
	"Отвечай только на основе предоставленного контекста FAQ. " +
	"Отвечай кратко, по-деловому, на русском языке. " +
	"Если в контексте нет ответа на вопрос, ответь дословно и без изменений: " +
	EscalationMessage

const (
	contextHeader = "Контекст FAQ:\n"
	queryHeader   = "Вопрос пользователя:\n"
)

// BuildMessages returns the system instruction and the user message carrying the
// assembled context followed by the query.
func BuildMessages(contextText, query string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: contextHeader + contextText + "\n\n" + queryHeader + query},
	}
}

// ExtractiveResponse answers without a language model: it returns the answer part of the
// first context fragment, or EscalationMessage when the context is empty. It is used by
// the mock model provider.
func ExtractiveResponse(messages []llm.Message) (string, error) {
	var user string
	for _, m := range messages {
		if m.Role == llm.RoleUser {
			user = m.Content
		}
	}
	body := strings.TrimPrefix(user, contextHeader)
	if i := strings.LastIndex(body, "\n\n"+queryHeader); i >= 0 {
		body = body[:i]
	}
	first, _, _ := strings.Cut(body, FragmentSeparator)
	first = strings.TrimSpace(first)
	if first == "" {
		return EscalationMessage, nil
	}
	// Skip the fragment header.
	if _, content, ok := strings.Cut(first, "\n\n"); ok {
		first = content
	}
	if _, answer, ok := strings.Cut(first, indexer.AnswerLabel+"\n"); ok {
		first = answer
	}
	return strings.TrimSpace(first), nil
}
