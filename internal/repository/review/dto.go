package review

import (
	"encoding/binary"
	"math"
	"strconv"

	domreview "github.com/kailas-cloud/revdex/internal/domain/review"
)

const (
	fieldContent = "__content"
	fieldVector  = "__vector"
)

// buildHashFields flattens a review into HSET field pairs.
func buildHashFields(r domreview.Review) map[string]string {
	m := make(map[string]string, 2+len(r.Tags())+len(r.Numerics()))
	m[fieldContent] = r.Text()
	m[fieldVector] = vectorToBytes(r.Embedding())
	for k, v := range r.Tags() {
		m[k] = v
	}
	for k, v := range r.Numerics() {
		m[k] = domreview.FormatNumeric(v)
	}
	return m
}

// parseHashFields rebuilds a review from returned hash fields. Schema fields are
// typed by the schema; unknown fields fall back to numeric-if-parseable.
func (s Schema) parseHashFields(id string, m map[string]string) domreview.Review {
	var text string
	tags := make(map[string]string)
	numerics := make(map[string]float64)

	for k, v := range m {
		switch {
		case k == fieldContent:
			text = v
		case k == fieldVector:
		case s.isTag(k):
			tags[k] = v
		case s.isNumeric(k):
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				numerics[k] = f
			}
		default:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				numerics[k] = f
			} else {
				tags[k] = v
			}
		}
	}

	return domreview.Reconstruct(id, text, tags, numerics, nil)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
