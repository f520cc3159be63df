// Package corpus reads review corpora in JSON Lines form:
//
//	{"id": 1, "text": "good moisturizer", "metadata": {"brand": "acme", "rating": 5}, "embedding": [0.1, ...]}
//
// String metadata becomes tags, numbers become numerics, booleans become "true"/"false" tags.
package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kailas-cloud/revdex/internal/domain/review"
)

// maxLine bounds one JSONL record (review text plus a large embedding).
const maxLine = 4 << 20

type record struct {
	ID        any                        `json:"id"`
	Text      string                     `json:"text"`
	Metadata  map[string]json.RawMessage `json:"metadata"`
	Embedding []float32                  `json:"embedding"`
}

// Read parses every non-blank line of r into a review.
func Read(r io.Reader) ([]review.Review, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var out []review.Review
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		rv, err := parseLine(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rv)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return out, nil
}

// ReadFile opens path and calls Read.
func ReadFile(path string) ([]review.Review, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied corpus path
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

func parseLine(raw []byte) (review.Review, error) {
	var rec record
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return review.Review{}, fmt.Errorf("decode: %w", err)
	}

	var id string
	switch v := rec.ID.(type) {
	case json.Number:
		id = v.String()
	case string:
		id = v
	default:
		return review.Review{}, fmt.Errorf("id must be a string or number, got %T", rec.ID)
	}

	tags := make(map[string]string)
	numerics := make(map[string]float64)
	for k, v := range rec.Metadata {
		if err := splitMetadata(k, v, tags, numerics); err != nil {
			return review.Review{}, err
		}
	}

	rv, err := review.New(id, rec.Text, tags, numerics)
	if err != nil {
		return review.Review{}, err //nolint:wrapcheck // already names the review
	}
	if len(rec.Embedding) > 0 {
		rv = rv.WithEmbedding(rec.Embedding)
	}
	return rv, nil
}

func splitMetadata(key string, raw json.RawMessage, tags map[string]string, numerics map[string]float64) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("metadata %q: %w", key, err)
	}
	switch x := v.(type) {
	case nil:
	case string:
		tags[key] = x
	case float64:
		numerics[key] = x
	case bool:
		if x {
			tags[key] = "true"
		} else {
			tags[key] = "false"
		}
	default:
		return fmt.Errorf("metadata %q: unsupported value %T", key, v)
	}
	return nil
}
