// Package kb loads question/answer knowledge records from JSON, JSON Lines, YAML and XLSX files.
package kb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/faqrag/internal/models"
)

// Loader reads knowledge records from a file. Malformed entries inside an otherwise valid
// file are skipped; a file that cannot be read or parsed as a whole fails with models.ErrLoad.
type Loader struct {
	logger *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger used to report skipped entries.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader returns a new Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file at path and returns its records in source order.
func (l *Loader) Load(path string) ([]models.RawRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", models.ErrLoad, path, err)
	}
	records, err := l.LoadBytes(content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// LoadBytes parses content based on the given extension (including the leading dot).
// Unknown extensions are parsed as JSON.
func (l *Loader) LoadBytes(content []byte, ext string) ([]models.RawRecord, error) {
	var (
		items []any
		err   error
	)
	switch ext {
	case ".xlsx":
		return loadExcel(content)
	case ".yaml", ".yml":
		items, err = decodeYAML(content)
	case ".jsonl", ".ndjson":
		items, err = decodeJSONLines(content)
	default:
		items, err = decodeJSON(content)
	}
	if err != nil {
		return nil, err
	}

	records := make([]models.RawRecord, 0, len(items))
	skipped := 0
	for i, item := range items {
		rec, ok := toRecord(item)
		if !ok {
			skipped++
			l.logger.Debug("skipping malformed knowledge entry", zap.Int("position", i))
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		l.logger.Warn("skipped malformed knowledge entries", zap.Int("skipped", skipped), zap.Int("kept", len(records)))
	}
	return records, nil
}

func decodeJSON(content []byte) ([]any, error) {
	var items []any
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array of records: %w", models.ErrLoad, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after the JSON array of records", models.ErrLoad)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: expected a JSON array of records, got null", models.ErrLoad)
	}
	return items, nil
}

func decodeJSONLines(content []byte) ([]any, error) {
	var items []any
	for n, line := range bytes.Split(content, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var item any
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", models.ErrLoad, n+1, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeYAML(content []byte) ([]any, error) {
	var items []any
	if err := yaml.Unmarshal(content, &items); err != nil {
		return nil, fmt.Errorf("%w: expected a YAML sequence of records: %w", models.ErrLoad, err)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: expected a YAML sequence of records, got an empty document", models.ErrLoad)
	}
	return items, nil
}

// recordKeys are the fields read from a knowledge entry. Other keys are ignored.
var recordKeys = []string{"question", "answer", "url"}

// toRecord converts a decoded entry into a record. Entries that are not objects, or whose
// known fields are not scalars, are rejected. Missing or null fields become empty strings.
func toRecord(item any) (models.RawRecord, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return models.RawRecord{}, false
	}
	var fields [3]string
	for i, key := range recordKeys {
		value, ok := lookupKey(obj, key)
		if !ok {
			return models.RawRecord{}, false
		}
		if fields[i], ok = scalarString(value); !ok {
			return models.RawRecord{}, false
		}
	}
	return models.RawRecord{Question: fields[0], Answer: fields[1], URL: fields[2]}, true
}

// lookupKey returns the value stored under key. An exact match wins; otherwise a single
// case-insensitive match is used. Several case variants without an exact match are
// ambiguous and reported as not ok. An absent key yields nil.
func lookupKey(obj map[string]any, key string) (any, bool) {
	if value, ok := obj[key]; ok {
		return value, true
	}
	var (
		found any
		n     int
	)
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			found = v
			n++
		}
	}
	return found, n <= 1
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}
