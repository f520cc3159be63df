package tokenize

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/revdex/internal/domain"
)

func mustNew(t *testing.T, name string, extra ...string) Tokenizer {
	t.Helper()
	tok, ok := New(name, extra)
	if !ok {
		t.Fatalf("tokenizer %q not found", name)
	}
	return tok
}

func TestUnicode(t *testing.T) {
	tok := mustNew(t, Unicode)
	got := tok.Tokenize("The GOOD moisturizer, a 10/10 buy! x")
	want := []string{"good", "moisturizer", "10", "10", "buy"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestUnicode_NFKC(t *testing.T) {
	tok := mustNew(t, Unicode)
	// full-width latin folds to ASCII
	got := tok.Tokenize("ＧＯＯＤ")
	if len(got) != 1 || got[0] != "good" {
		t.Errorf("Tokenize() = %v", got)
	}
}

func TestUnicode_ExtraStopwords(t *testing.T) {
	tok := mustNew(t, Unicode, "Product")
	got := tok.Tokenize("great product")
	if !reflect.DeepEqual(got, []string{"great"}) {
		t.Errorf("Tokenize() = %v", got)
	}
}

func TestWhitespace(t *testing.T) {
	tok := mustNew(t, Whitespace)
	got := tok.Tokenize("  (Smells) great... it's  ")
	want := []string{"smells", "great", "it's"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestCJKBigram(t *testing.T) {
	tok := mustNew(t, CJKBigram)
	got := tok.Tokenize("보습력 good 향")
	want := []string{"보습", "습력", "good", "향"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenize_Empty(t *testing.T) {
	for _, name := range []string{Unicode, Whitespace, CJKBigram} {
		if got := mustNew(t, name).Tokenize(""); len(got) != 0 {
			t.Errorf("%s: Tokenize(\"\") = %v", name, got)
		}
	}
}

func TestRegistry_Get(t *testing.T) {
	reg, err := NewRegistry(Unicode, map[string]string{"naver": CJKBigram, "ko": CJKBigram}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"naver", CJKBigram},
		{"ko", CJKBigram},
		{Whitespace, Whitespace},
		{"amazon", Unicode},
		{"", Unicode},
	}
	for _, tt := range tests {
		if got := reg.Get(tt.key).Name(); got != tt.want {
			t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestRegistry_UnknownNames(t *testing.T) {
	if _, err := NewRegistry("klingon", nil, nil); !errors.Is(err, domain.ErrUnknownTokenizer) {
		t.Errorf("unknown default: %v", err)
	}
	if _, err := NewRegistry("", map[string]string{"x": "nope"}, nil); !errors.Is(err, domain.ErrUnknownTokenizer) {
		t.Errorf("unknown alias target: %v", err)
	}

	reg, _ := NewRegistry("", nil, nil)
	if _, err := reg.Lookup("nope"); !errors.Is(err, domain.ErrUnknownTokenizer) {
		t.Errorf("Lookup: %v", err)
	}
	if got := reg.Names(); !reflect.DeepEqual(got, []string{CJKBigram, Unicode, Whitespace}) {
		t.Errorf("Names() = %v", got)
	}
}
