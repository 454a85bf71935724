// Package filter parses the OData-style $filter subset partners use to query
// the footprint catalog and compiles it into a store condition.
//
// The grammar is deliberately flat: clauses are read left to right and each
// clause after the first carries its own conjunction against everything
// before it. There is no operator precedence.
package filter

import (
	"strings"

	"github.com/wolfeidau/pcfhub/internal/apperr"
)

// Operator is a comparison operator in its SQL spelling.
type Operator string

const (
	OpEq Operator = "="
	OpNe Operator = "!="
	OpGt Operator = ">"
	OpLt Operator = "<"
	OpGe Operator = ">="
	OpLe Operator = "<="
)

var operators = map[string]Operator{
	"eq": OpEq,
	"ne": OpNe,
	"gt": OpGt,
	"lt": OpLt,
	"ge": OpGe,
	"le": OpLe,
}

// Conjunction joins a clause to the clauses before it.
type Conjunction string

const (
	ConjNone   Conjunction = ""
	ConjAnd    Conjunction = "and"
	ConjOr     Conjunction = "or"
	ConjAndNot Conjunction = "and not"
	ConjOrNot  Conjunction = "or not"
)

// Collector quantifies a predicate over a collection property.
type Collector string

const (
	CollectNone Collector = ""
	CollectAny  Collector = "any"
	CollectAll  Collector = "all"
)

// Predicate compares a property path with a literal.
type Predicate struct {
	Operand1  string // dotted property path, e.g. "pcf.geographyCountry"
	Operator  Operator
	Operand2  string
	Collector Collector
}

// Expression is one clause of a filter.
type Expression struct {
	Conjunction Conjunction // ConjNone for the first clause
	Predicate   Predicate
}

// Parse reads a filter string. Malformed input is a RequestError.
func Parse(input string) ([]Expression, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	var out []Expression
	for !p.done() {
		conj := ConjNone
		if len(out) > 0 {
			if conj, err = p.conjunction(); err != nil {
				return nil, err
			}
		}
		pred, err := p.clause()
		if err != nil {
			return nil, err
		}
		out = append(out, Expression{Conjunction: conj, Predicate: pred})
	}
	if len(out) == 0 {
		return nil, apperr.Request("empty filter")
	}
	return out, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	if !p.done() {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, apperr.Request("unexpected %s at offset %d, expected %s", t, t.offset, kind)
	}
	return t, nil
}

func (p *parser) conjunction() (Conjunction, error) {
	t := p.next()
	if t.kind != tokWord {
		return "", apperr.Request("expected and/or at offset %d", t.offset)
	}
	var conj Conjunction
	switch strings.ToLower(t.text) {
	case "and":
		conj = ConjAnd
	case "or":
		conj = ConjOr
	default:
		return "", apperr.Request("expected and/or at offset %d, got %q", t.offset, t.text)
	}
	if n := p.peek(); n.kind == tokWord && strings.EqualFold(n.text, "not") {
		p.next()
		if conj == ConjAnd {
			return ConjAndNot, nil
		}
		return ConjOrNot, nil
	}
	return conj, nil
}

// clause reads a comparison, a parenthesised comparison or a collection
// predicate.
func (p *parser) clause() (Predicate, error) {
	if p.peek().kind == tokLParen {
		p.next()
		pred, err := p.comparison()
		if err != nil {
			return Predicate{}, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return Predicate{}, err
		}
		return pred, nil
	}

	path := p.peek()
	if path.kind == tokWord {
		if field, collector, ok := splitCollector(path.text); ok && p.peekAt(1).kind == tokLParen {
			p.pos += 2
			return p.collection(field, collector)
		}
	}
	return p.comparison()
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos+n]
}

// collection reads "var:(var op literal))" after "field/any(".
func (p *parser) collection(field string, collector Collector) (Predicate, error) {
	v, err := p.expect(tokWord)
	if err != nil {
		return Predicate{}, err
	}
	if _, err := p.expect(tokColon); err != nil {
		return Predicate{}, err
	}
	if _, err := p.expect(tokLParen); err != nil {
		return Predicate{}, err
	}
	inner, err := p.comparison()
	if err != nil {
		return Predicate{}, err
	}
	if inner.Operand1 != v.text {
		return Predicate{}, apperr.Request("lambda variable %q does not match %q", inner.Operand1, v.text)
	}
	if _, err := p.expect(tokRParen); err != nil {
		return Predicate{}, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return Predicate{}, err
	}
	return Predicate{
		Operand1:  normalizePath(field),
		Operator:  inner.Operator,
		Operand2:  inner.Operand2,
		Collector: collector,
	}, nil
}

func (p *parser) comparison() (Predicate, error) {
	path, err := p.expect(tokWord)
	if err != nil {
		return Predicate{}, err
	}
	opTok, err := p.expect(tokWord)
	if err != nil {
		return Predicate{}, err
	}
	op, ok := operators[strings.ToLower(opTok.text)]
	if !ok {
		return Predicate{}, apperr.Request("unknown operator %q at offset %d", opTok.text, opTok.offset)
	}
	lit := p.next()
	if lit.kind != tokString && lit.kind != tokWord {
		return Predicate{}, apperr.Request("expected literal at offset %d", lit.offset)
	}
	return Predicate{Operand1: normalizePath(path.text), Operator: op, Operand2: lit.text}, nil
}

func splitCollector(path string) (string, Collector, bool) {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "", CollectNone, false
	}
	switch strings.ToLower(path[i+1:]) {
	case "any":
		return path[:i], CollectAny, true
	case "all":
		return path[:i], CollectAll, true
	}
	return "", CollectNone, false
}

func normalizePath(path string) string {
	return strings.ReplaceAll(path, "/", ".")
}
