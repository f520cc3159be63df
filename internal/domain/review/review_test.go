package review

import (
	"strings"
	"testing"
)

func TestNew_Valid(t *testing.T) {
	tags := map[string]string{"brand": "acme"}
	r, err := New("42", "good moisturizer", tags, map[string]float64{"rating": 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags["brand"] = "mutated"
	if r.Tags()["brand"] != "acme" {
		t.Error("tags must be copied on construction")
	}
	if r.ID() != "42" || r.Text() != "good moisturizer" {
		t.Errorf("unexpected review: %q %q", r.ID(), r.Text())
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		id   string
		text string
	}{
		{"empty id", "", "text"},
		{"long id", strings.Repeat("x", MaxIDLength+1), "text"},
		{"empty text", "1", ""},
		{"huge text", "1", strings.Repeat("a", MaxTextSize+1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.id, tc.text, nil, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWithEmbedding_Copy(t *testing.T) {
	r := Reconstruct("1", "text", nil, nil, nil)
	r2 := r.WithEmbedding([]float32{1, 2})
	if r.Embedding() != nil {
		t.Error("original must stay without embedding")
	}
	if len(r2.Embedding()) != 2 {
		t.Errorf("expected embedding on copy, got %v", r2.Embedding())
	}
}

func TestMetadata_Merge(t *testing.T) {
	r := Reconstruct("1", "text",
		map[string]string{"channel": "naver"},
		map[string]float64{"rating": 4.5, "date": 1700000000}, nil)

	m := r.Metadata()
	if m["channel"] != "naver" {
		t.Errorf("channel = %v", m["channel"])
	}
	if m["rating"] != 4.5 {
		t.Errorf("rating = %v", m["rating"])
	}
	if m["date"] != int64(1700000000) {
		t.Errorf("date = %v (%T)", m["date"], m["date"])
	}
}
