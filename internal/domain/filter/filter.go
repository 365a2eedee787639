package filter

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/fastload/internal/domain"
)

// Separator joins attribute and value in a filter token. Neither side may
// contain it; there is no escaping.
const Separator = " - "

// Token is a single "attribute - value" filter clause.
type Token struct {
	key   string
	value string
}

// NewToken validates and creates a Token.
func NewToken(key, value string) (Token, error) {
	if key == "" {
		return Token{}, fmt.Errorf("%w: attribute is required", domain.ErrInvalidFilter)
	}
	if value == "" {
		return Token{}, fmt.Errorf("%w: value is required for attribute %q", domain.ErrInvalidFilter, key)
	}
	if strings.Contains(key, Separator) {
		return Token{}, fmt.Errorf("%w: attribute %q contains %q", domain.ErrInvalidFilter, key, Separator)
	}
	return Token{key: key, value: value}, nil
}

// ParseToken splits s at the first separator.
func ParseToken(s string) (Token, error) {
	key, value, ok := strings.Cut(s, Separator)
	if !ok {
		return Token{}, fmt.Errorf("%w: token %q has no %q separator", domain.ErrInvalidFilter, s, Separator)
	}
	return NewToken(key, value)
}

// Format renders an attribute/value pair as a token string.
func Format(key, value string) string { return key + Separator + value }

// Key returns the attribute name.
func (t Token) Key() string { return t.key }

// Value returns the attribute value.
func (t Token) Value() string { return t.value }

// String returns the token in "attribute - value" form.
func (t Token) String() string { return Format(t.key, t.value) }

// Set is an insertion-ordered set of filter tokens.
type Set struct {
	tokens []Token
	index  map[string]struct{}
}

// NewSet parses tokens into a Set. Duplicates collapse.
func NewSet(tokens ...string) (Set, error) {
	var s Set
	for _, raw := range tokens {
		t, err := ParseToken(raw)
		if err != nil {
			return Set{}, err
		}
		s.add(t)
	}
	return s, nil
}

// Contains reports whether token (in string form) is in the set.
func (s Set) Contains(token string) bool {
	_, ok := s.index[token]
	return ok
}

// Len returns the number of tokens.
func (s Set) Len() int { return len(s.tokens) }

// IsEmpty reports whether the set has no tokens.
func (s Set) IsEmpty() bool { return len(s.tokens) == 0 }

// Tokens returns the tokens in insertion order.
func (s Set) Tokens() []Token { return s.tokens }

// Strings returns the tokens in string form.
func (s Set) Strings() []string {
	out := make([]string, len(s.tokens))
	for i, t := range s.tokens {
		out[i] = t.String()
	}
	return out
}

// Union returns a new set holding the tokens of s followed by the new tokens of o.
func (s Set) Union(o Set) Set {
	var out Set
	for _, t := range s.tokens {
		out.add(t)
	}
	for _, t := range o.tokens {
		out.add(t)
	}
	return out
}

func (s *Set) add(t Token) {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	k := t.String()
	if _, ok := s.index[k]; ok {
		return
	}
	s.index[k] = struct{}{}
	s.tokens = append(s.tokens, t)
}
