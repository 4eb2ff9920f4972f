package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/faqrag/internal/models"
)

// Special tokens of BERT-style vocabularies.
const (
	TokenCLS = "[CLS]"
	TokenSEP = "[SEP]"
	TokenUNK = "[UNK]"
	TokenPAD = "[PAD]"
)

const maxRunesPerWord = 100

// Tokenizer produces model inputs for BERT-style encoders.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// WordPieceTokenizer implements BERT tokenization: text cleanup, whitespace and
// punctuation splitting, optional lowercasing with accent stripping, then greedy
// longest-match WordPiece over the model vocabulary.
type WordPieceTokenizer struct {
	vocab     map[string]int64
	lowercase bool
	cls       int64
	sep       int64
	unk       int64
	pad       int64
}

// LoadVocab reads a vocab.txt file: one token per line, the line number being its ID.
func LoadVocab(path string) (map[string]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open vocabulary: %w", models.ErrConfig, err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	var id int64
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r")
		if _, dup := vocab[token]; !dup {
			vocab[token] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read vocabulary %s: %w", models.ErrConfig, path, err)
	}
	return vocab, nil
}

// NewWordPieceTokenizer returns a tokenizer over vocab. The vocabulary must define
// [CLS], [SEP] and [UNK]; a missing [PAD] pads with 0.
func NewWordPieceTokenizer(vocab map[string]int64, lowercase bool) (*WordPieceTokenizer, error) {
	t := &WordPieceTokenizer{vocab: vocab, lowercase: lowercase}
	for _, special := range []struct {
		token string
		id    *int64
	}{{TokenCLS, &t.cls}, {TokenSEP, &t.sep}, {TokenUNK, &t.unk}} {
		id, ok := vocab[special.token]
		if !ok {
			return nil, fmt.Errorf("%w: vocabulary has no %s token", models.ErrConfig, special.token)
		}
		*special.id = id
	}
	t.pad = vocab[TokenPAD]
	return t, nil
}

// LoadWordPieceTokenizer reads the vocabulary at path and returns its tokenizer.
func LoadWordPieceTokenizer(path string, lowercase bool) (*WordPieceTokenizer, error) {
	vocab, err := LoadVocab(path)
	if err != nil {
		return nil, err
	}
	return NewWordPieceTokenizer(vocab, lowercase)
}

// Tokenize returns input IDs framed by [CLS] and [SEP], padded to maxTokens, with the
// matching attention mask and all-zero token type IDs. Long inputs are truncated.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = 2
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	ids := t.ids(text)
	if len(ids) > maxTokens-2 {
		ids = ids[:maxTokens-2]
	}
	inputIDs[0] = t.cls
	copy(inputIDs[1:], ids)
	inputIDs[len(ids)+1] = t.sep
	for i := 0; i < len(ids)+2; i++ {
		attentionMask[i] = 1
	}
	for i := len(ids) + 2; i < maxTokens; i++ {
		inputIDs[i] = t.pad
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// Pieces returns the WordPiece tokens of text without the framing tokens.
func (t *WordPieceTokenizer) Pieces(text string) []string {
	var pieces []string
	for _, word := range t.basicTokens(text) {
		pieces = append(pieces, t.wordPieces(word)...)
	}
	return pieces
}

func (t *WordPieceTokenizer) ids(text string) []int64 {
	pieces := t.Pieces(text)
	ids := make([]int64, len(pieces))
	for i, p := range pieces {
		id, ok := t.vocab[p]
		if !ok {
			id = t.unk
		}
		ids[i] = id
	}
	return ids
}

// basicTokens splits text on whitespace and around punctuation and CJK ideographs.
func (t *WordPieceTokenizer) basicTokens(text string) []string {
	if t.lowercase {
		text = stripAccents(strings.ToLower(text))
	}
	var (
		tokens []string
		word   []rune
	)
	flush := func() {
		if len(word) > 0 {
			tokens = append(tokens, string(word))
			word = word[:0]
		}
	}
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || (unicode.IsControl(r) && !unicode.IsSpace(r)):
		case unicode.IsSpace(r):
			flush()
		case isPunctuation(r) || isCJK(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			word = append(word, r)
		}
	}
	flush()
	return tokens
}

// wordPieces splits one basic token greedily into the longest vocabulary entries.
// A word that cannot be fully covered becomes a single [UNK].
func (t *WordPieceTokenizer) wordPieces(word string) []string {
	runes := []rune(word)
	if len(runes) > maxRunesPerWord {
		return []string{TokenUNK}
	}
	var pieces []string
	for start := 0; start < len(runes); {
		end := len(runes)
		found := ""
		for ; end > start; end-- {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = "##" + candidate
			}
			if _, ok := t.vocab[candidate]; ok {
				found = candidate
				break
			}
		}
		if found == "" {
			return []string{TokenUNK}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}

func stripAccents(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isPunctuation treats every non-alphanumeric ASCII symbol as punctuation, plus the
// Unicode punctuation classes.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
