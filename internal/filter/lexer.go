package filter

import (
	"fmt"
	"strings"

	"github.com/wolfeidau/pcfhub/internal/apperr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokLParen
	tokRParen
	tokColon
)

func (k tokenKind) String() string {
	switch k {
	case tokWord:
		return "word"
	case tokString:
		return "string"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokColon:
		return "':'"
	default:
		return "end of input"
	}
}

type token struct {
	kind   tokenKind
	text   string
	offset int
}

func (t token) String() string {
	if t.kind == tokWord || t.kind == tokString {
		return fmt.Sprintf("%s %q", t.kind, t.text)
	}
	return t.kind.String()
}

func tokenize(input string) ([]token, error) {
	var toks []token
	for i := 0; i < len(input); {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, offset: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, offset: i})
			i++
		case c == ':':
			toks = append(toks, token{kind: tokColon, offset: i})
			i++
		case c == '\'':
			s, n, err := readString(input[i:])
			if err != nil {
				return nil, apperr.Request("%v at offset %d", err, i)
			}
			toks = append(toks, token{kind: tokString, text: s, offset: i})
			i += n
		default:
			start := i
			for i < len(input) && isWordByte(input[i]) {
				i++
			}
			if start == i {
				return nil, apperr.Request("unexpected character %q at offset %d", c, i)
			}
			toks = append(toks, token{kind: tokWord, text: input[start:i], offset: start})
		}
	}
	return toks, nil
}

// readString reads a single quoted literal. Two single quotes escape a quote.
func readString(s string) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		return b.String(), i + 1, nil
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func isWordByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '/' || c == '.' || c == '_' || c == '-' || c == '+':
		return true
	}
	return false
}
