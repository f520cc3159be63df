package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `{"id": 1, "text": "good moisturizer", "metadata": {"brand": "acme", "rating": 5, "verified": true}}

{"id": "r-2", "text": "bad smell", "metadata": {"channel": "naver", "date": 1700000000}, "embedding": [0.5, 0.25]}
`

func TestRead(t *testing.T) {
	reviews, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(reviews))
	}

	first := reviews[0]
	if first.ID() != "1" || first.Text() != "good moisturizer" {
		t.Errorf("first = %q %q", first.ID(), first.Text())
	}
	if first.Tags()["brand"] != "acme" || first.Tags()["verified"] != "true" {
		t.Errorf("tags = %v", first.Tags())
	}
	if first.Numerics()["rating"] != 5 {
		t.Errorf("numerics = %v", first.Numerics())
	}
	if first.Embedding() != nil {
		t.Error("first review has no embedding")
	}

	second := reviews[1]
	if second.ID() != "r-2" || len(second.Embedding()) != 2 || second.Embedding()[1] != 0.25 {
		t.Errorf("second = %q %v", second.ID(), second.Embedding())
	}
	if second.Numerics()["date"] != 1700000000 {
		t.Errorf("date = %v", second.Numerics()["date"])
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bad json", `{"id": 1,`, "line 1"},
		{"missing text", `{"id": 1}`, "text is required"},
		{"bad id", `{"id": [1], "text": "x"}`, "id must be"},
		{"nested metadata", `{"id": 1, "text": "x", "metadata": {"a": {"b": 1}}}`, "unsupported"},
		{"second line", "{\"id\": 1, \"text\": \"x\"}\n{\"id\": 2}", "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.jsonl")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	reviews, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reviews) != 2 {
		t.Errorf("expected 2 reviews, got %d", len(reviews))
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}
