package embedding

import "path/filepath"

// DefaultONNXOutput is the encoder output holding per-token hidden states.
const DefaultONNXOutput = "last_hidden_state"

// ONNXConfig holds configuration for the local ONNX embedding provider.
type ONNXConfig struct {
	// ModelPath is the .onnx sentence-embedding model file.
	ModelPath string

	// VocabPath is the WordPiece vocab.txt of the model. Empty means vocab.txt next to ModelPath.
	VocabPath string

	// Lowercase lowercases and strips accents before WordPiece, as uncased models expect.
	Lowercase bool

	// Dimensions is the model's hidden size.
	Dimensions int

	// MaxTokens is the fixed input sequence length.
	MaxTokens int

	// OutputName is the hidden-state output; defaults to DefaultONNXOutput.
	OutputName string
}

func (c ONNXConfig) vocabPath() string {
	if c.VocabPath != "" {
		return c.VocabPath
	}
	return filepath.Join(filepath.Dir(c.ModelPath), "vocab.txt")
}

func (c ONNXConfig) outputName() string {
	if c.OutputName != "" {
		return c.OutputName
	}
	return DefaultONNXOutput
}

// meanPool averages the hidden states of attended tokens. hidden is laid out as
// [tokens][dims].
func meanPool(hidden []float32, mask []int64, dims int) []float32 {
	pooled := make([]float32, dims)
	var count float32
	for tok, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[tok*dims : (tok+1)*dims]
		for d, v := range row {
			pooled[d] += v
		}
		count++
	}
	if count > 0 {
		for d := range pooled {
			pooled[d] /= count
		}
	}
	return pooled
}
