package bm25

import (
	"math"
	"testing"
)

func TestScore_RanksMatchingDocs(t *testing.T) {
	ix := New([][]string{
		{"good", "moisturizer"},
		{"bad", "smell"},
		{"good", "texture"},
	})
	s := ix.Score([]string{"good"})

	if len(s) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(s))
	}
	if s[0] <= 0 || s[2] <= 0 {
		t.Errorf("matching docs must score > 0: %v", s)
	}
	if s[1] != 0 {
		t.Errorf("non-matching doc must score 0: %v", s[1])
	}
	if s[0] != s[2] {
		t.Errorf("equal-length matches must tie: %v vs %v", s[0], s[2])
	}
}

func TestScore_KnownValue(t *testing.T) {
	ix := New([][]string{{"a", "b"}, {"c", "d"}})
	got := ix.Score([]string{"a"})[0]

	// n=2 df=1 → idf = ln(1 + 1.5/1.5) = ln 2; dl = avgdl → tf term = 1*2.2/(1+1.2)
	want := math.Log(2)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScore_RepeatedQueryTerms(t *testing.T) {
	ix := New([][]string{{"good", "smell"}, {"bad"}})
	once := ix.Score([]string{"good"})[0]
	twice := ix.Score([]string{"good", "good"})[0]
	if math.Abs(twice-2*once) > 1e-12 {
		t.Errorf("twice = %v, want %v", twice, 2*once)
	}
}

func TestScore_LengthNormalization(t *testing.T) {
	ix := New([][]string{
		{"good"},
		{"good", "x1", "x2", "x3", "x4", "x5"},
	})
	s := ix.Score([]string{"good"})
	if s[0] <= s[1] {
		t.Errorf("shorter doc must score higher: %v", s)
	}
}

func TestScore_EmptyDocs(t *testing.T) {
	ix := New([][]string{{}, {}})
	s := ix.Score([]string{"good"})
	if s[0] != 0 || s[1] != 0 {
		t.Errorf("empty corpus must score 0: %v", s)
	}

	if len(New(nil).Score([]string{"x"})) != 0 {
		t.Error("no documents, no scores")
	}
}

func TestIDF_NonNegative(t *testing.T) {
	ix := New([][]string{{"a"}, {"a"}, {"a"}})
	if idf := ix.IDF("a"); idf < 0 {
		t.Errorf("IDF = %v", idf)
	}
}

func TestWithParams(t *testing.T) {
	docs := [][]string{{"good", "good"}, {"bad"}}
	def := New(docs).Score([]string{"good"})[0]
	flat := New(docs, WithParams(0, 0)).Score([]string{"good"})[0]
	// k1 = 0 removes term frequency saturation: score equals idf
	if math.Abs(flat-New(docs).IDF("good")) > 1e-12 {
		t.Errorf("k1=0 score = %v", flat)
	}
	if def == flat {
		t.Error("params must change the score")
	}
}
