package review

import (
	"fmt"
	"strconv"
)

// MaxTextSize is the maximum review text size in bytes.
const MaxTextSize = 65536

// MaxIDLength is the maximum review identifier length.
const MaxIDLength = 256

// Review is a single product review (immutable value object).
// String metadata lives in tags (brand, channel, category, product_id),
// numeric metadata in numerics (rating, date as Unix seconds).
type Review struct {
	id        string
	text      string
	tags      map[string]string
	numerics  map[string]float64
	embedding []float32
}

// New validates and creates a Review.
func New(id, text string, tags map[string]string, numerics map[string]float64) (Review, error) {
	if id == "" {
		return Review{}, fmt.Errorf("review ID is required")
	}
	if len(id) > MaxIDLength {
		return Review{}, fmt.Errorf("review ID too long (max %d)", MaxIDLength)
	}
	if text == "" {
		return Review{}, fmt.Errorf("review %q: text is required", id)
	}
	if len(text) > MaxTextSize {
		return Review{}, fmt.Errorf("review %q: text too large (max %d bytes)", id, MaxTextSize)
	}
	return Review{
		id:       id,
		text:     text,
		tags:     cloneTags(tags),
		numerics: cloneNumerics(numerics),
	}, nil
}

// Reconstruct creates a Review without validation (storage hydration).
func Reconstruct(
	id, text string, tags map[string]string, numerics map[string]float64, embedding []float32,
) Review {
	return Review{id: id, text: text, tags: tags, numerics: numerics, embedding: embedding}
}

// ID returns the review identifier.
func (r Review) ID() string { return r.id }

// Text returns the review body.
func (r Review) Text() string { return r.text }

// Tags returns the string metadata.
func (r Review) Tags() map[string]string { return r.tags }

// Numerics returns the numeric metadata.
func (r Review) Numerics() map[string]float64 { return r.numerics }

// Embedding returns the precomputed vector, nil when not loaded.
func (r Review) Embedding() []float32 { return r.embedding }

// WithEmbedding returns a copy with the given vector attached.
func (r Review) WithEmbedding(v []float32) Review {
	r.embedding = v
	return r
}

// Metadata merges tags and numerics into one attribute map.
// Integral numerics are returned as int64 so ids and dates serialize without exponent.
func (r Review) Metadata() map[string]any {
	m := make(map[string]any, len(r.tags)+len(r.numerics))
	for k, v := range r.tags {
		m[k] = v
	}
	for k, v := range r.numerics {
		if v == float64(int64(v)) {
			m[k] = int64(v)
			continue
		}
		m[k] = v
	}
	return m
}

// Hit is a vector store match: the review plus its cosine similarity to the query.
type Hit struct {
	Review     Review
	Similarity float64
}

// FormatNumeric renders a numeric metadata value for flat storage.
func FormatNumeric(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func cloneTags(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneNumerics(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	c := make(map[string]float64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
