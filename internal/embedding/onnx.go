//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/faqrag/internal/models"
	"github.com/hyperjump/faqrag/pkg/utils"
)

// ONNXEmbedder runs a local sentence-transformers encoder with ONNX Runtime. Texts are
// WordPiece-tokenized with the model's vocabulary and the token states are mean-pooled
// into one vector. It requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	tokenizer  Tokenizer
	model      string
	dimensions int
	maxTokens  int

	// Run reads inputs from and writes outputs to these tensors, so calls hold mu.
	mu            sync.Mutex
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	hidden        *ort.Tensor[float32]
}

// NewONNXEmbedder loads the model and its vocabulary. The ONNX environment is
// initialized on first use.
func NewONNXEmbedder(cfg ONNXConfig) (*ONNXEmbedder, error) {
	if cfg.Dimensions <= 0 || cfg.MaxTokens < 2 {
		return nil, fmt.Errorf("%w: onnx: invalid dimensions %d or max tokens %d", models.ErrConfig, cfg.Dimensions, cfg.MaxTokens)
	}
	tokenizer, err := LoadWordPieceTokenizer(cfg.vocabPath(), cfg.Lowercase)
	if err != nil {
		return nil, err
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, wrapErr("initialize ONNX runtime", err)
		}
	}

	e := &ONNXEmbedder{
		tokenizer:  tokenizer,
		model:      strings.TrimSuffix(filepath.Base(cfg.ModelPath), filepath.Ext(cfg.ModelPath)),
		dimensions: cfg.Dimensions,
		maxTokens:  cfg.MaxTokens,
	}
	seq := ort.NewShape(1, int64(cfg.MaxTokens))
	if e.inputIDs, err = ort.NewEmptyTensor[int64](seq); err != nil {
		return nil, e.fail("input_ids tensor", err)
	}
	if e.attentionMask, err = ort.NewEmptyTensor[int64](seq); err != nil {
		return nil, e.fail("attention_mask tensor", err)
	}
	if e.tokenTypeIDs, err = ort.NewEmptyTensor[int64](seq); err != nil {
		return nil, e.fail("token_type_ids tensor", err)
	}
	if e.hidden, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.MaxTokens), int64(cfg.Dimensions))); err != nil {
		return nil, e.fail("hidden state tensor", err)
	}

	e.session, err = ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{cfg.outputName()},
		[]ort.ArbitraryTensor{e.inputIDs, e.attentionMask, e.tokenTypeIDs},
		[]ort.ArbitraryTensor{e.hidden},
		nil,
	)
	if err != nil {
		return nil, e.fail("session", err)
	}
	return e, nil
}

func (e *ONNXEmbedder) fail(what string, err error) error {
	_ = e.Close()
	return wrapErr("create ONNX "+what, err)
}

// Embed returns the unit-length mean-pooled embedding for text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("onnx embed", err)
	}
	ids, mask, types := e.tokenizer.Tokenize(text, e.maxTokens)

	e.mu.Lock()
	defer e.mu.Unlock()
	copy(e.inputIDs.GetData(), ids)
	copy(e.attentionMask.GetData(), mask)
	copy(e.tokenTypeIDs.GetData(), types)
	if err := e.session.Run(); err != nil {
		return nil, wrapErr("onnx inference", err)
	}
	vec := meanPool(e.hidden.GetData(), mask, e.dimensions)
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch embeds texts one at a time over the shared session.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns the embedding space identifier.
func (e *ONNXEmbedder) Model() string {
	return "onnx/" + e.model
}

// Close releases the session and its tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{e.inputIDs, e.attentionMask, e.tokenTypeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if e.hidden != nil {
		_ = e.hidden.Destroy()
	}
	e.inputIDs, e.attentionMask, e.tokenTypeIDs, e.hidden = nil, nil, nil, nil
	return err
}
