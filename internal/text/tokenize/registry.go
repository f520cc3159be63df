package tokenize

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/revdex/internal/domain"
)

// Registry resolves a tokenizer for a channel, locale or explicit name.
// Immutable after construction, safe for concurrent use.
type Registry struct {
	byName   map[string]Tokenizer
	aliases  map[string]string
	fallback Tokenizer
}

// NewRegistry builds all built-ins and validates the alias table.
// aliases maps a channel or locale (e.g. "naver", "ko") to a tokenizer name.
func NewRegistry(defaultName string, aliases map[string]string, extraStopwords []string) (*Registry, error) {
	if defaultName == "" {
		defaultName = Unicode
	}
	r := &Registry{
		byName:  make(map[string]Tokenizer, 3),
		aliases: make(map[string]string, len(aliases)),
	}
	for _, name := range []string{Unicode, Whitespace, CJKBigram} {
		t, _ := New(name, extraStopwords)
		r.byName[name] = t
	}

	fallback, ok := r.byName[defaultName]
	if !ok {
		return nil, fmt.Errorf("default tokenizer %q: %w", defaultName, domain.ErrUnknownTokenizer)
	}
	r.fallback = fallback

	for alias, name := range aliases {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("alias %q -> %q: %w", alias, name, domain.ErrUnknownTokenizer)
		}
		r.aliases[alias] = name
	}
	return r, nil
}

// Get returns the tokenizer for a channel or locale, falling back to the
// default when the key is unknown or empty.
func (r *Registry) Get(channelOrLocale string) Tokenizer {
	if name, ok := r.aliases[channelOrLocale]; ok {
		return r.byName[name]
	}
	if t, ok := r.byName[channelOrLocale]; ok {
		return t
	}
	return r.fallback
}

// Lookup returns a tokenizer by exact name.
func (r *Registry) Lookup(name string) (Tokenizer, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, domain.ErrUnknownTokenizer)
	}
	return t, nil
}

// Names lists registered tokenizer names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
