package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/pcf"
)

// Condition is a compiled filter. A nil Condition matches everything.
type Condition struct {
	terms []term
}

type term struct {
	conj Conjunction
	node node
}

type node interface {
	sql(b *builder) string
	match(r Record) bool
}

// Compile turns parsed expressions into a condition. Property paths that are
// not part of the catalog are dropped without error; the conjunction of a
// dropped clause goes with it.
func Compile(exprs []Expression) (*Condition, error) {
	c := &Condition{}
	for _, e := range exprs {
		n, ok, err := compilePredicate(e.Predicate)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Debug().Str("property", e.Predicate.Operand1).Msg("Ignoring unknown filter property")
			continue
		}
		c.terms = append(c.terms, term{conj: e.Conjunction, node: n})
	}
	if len(c.terms) == 0 {
		return nil, nil
	}
	return c, nil
}

// ParseAndCompile is Parse followed by Compile. An empty input yields nil.
func ParseAndCompile(input string) (*Condition, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	exprs, err := Parse(input)
	if err != nil {
		return nil, err
	}
	return Compile(exprs)
}

func compilePredicate(p Predicate) (node, bool, error) {
	switch p.Operand1 {
	case "productIds":
		n, err := compileMembership(identifierSubject{
			table:  "product_identifiers",
			owner:  "product_id",
			column: "f.product_id",
			decode: pcf.ParseProductURN,
			ids:    func(r Record) []models.Identifier { return r.Product.Identifiers },
		}, p)
		return n, true, err
	case "companyIds":
		n, err := compileMembership(identifierSubject{
			table:  "organization_identifiers",
			owner:  "org_id",
			column: "f.org_id",
			decode: pcf.ParseOrganizationURN,
			ids:    func(r Record) []models.Identifier { return r.Organization.Identifiers },
		}, p)
		return n, true, err
	}

	f, ok := fields[p.Operand1]
	if !ok {
		return nil, false, nil
	}
	if p.Collector != CollectNone {
		return nil, true, apperr.Request("%s is not a collection", p.Operand1)
	}

	literal := p.Operand2
	if f.unit {
		u, err := pcf.UnitFromWire(literal)
		if err != nil {
			return nil, true, err
		}
		literal = u
	}
	v, err := convert(f.kind, literal)
	if err != nil {
		return nil, true, apperr.Request("invalid value %q for %s: %v", p.Operand2, p.Operand1, err)
	}
	return &comparison{field: f, op: p.Operator, value: v}, true, nil
}

func convert(kind valueKind, literal string) (any, error) {
	switch kind {
	case kindNumber:
		return strconv.ParseFloat(literal, 64)
	case kindTime:
		return time.Parse(time.RFC3339Nano, literal)
	case kindBool:
		return strconv.ParseBool(literal)
	case kindUUID:
		id, err := uuid.Parse(literal)
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	default:
		return literal, nil
	}
}

// SQL renders the condition as a parameterised WHERE fragment. Parameters are
// appended to args and referenced by position, so the caller can put its own
// parameters first.
func (c *Condition) SQL(args []any) (string, []any) {
	if c == nil || len(c.terms) == 0 {
		return "TRUE", args
	}
	b := &builder{args: args}

	expr := negate(c.terms[0].conj, c.terms[0].node.sql(b))
	for _, t := range c.terms[1:] {
		rhs := negate(t.conj, t.node.sql(b))
		if t.conj == ConjOr || t.conj == ConjOrNot {
			expr = "(" + expr + " OR " + rhs + ")"
		} else {
			expr = "(" + expr + " AND " + rhs + ")"
		}
	}
	return expr, b.args
}

func negate(conj Conjunction, sql string) string {
	if conj == ConjAndNot || conj == ConjOrNot {
		return "(NOT " + sql + ")"
	}
	return sql
}

// Match evaluates the condition against one record.
func (c *Condition) Match(r Record) bool {
	if c == nil || len(c.terms) == 0 {
		return true
	}

	result := apply(c.terms[0].conj, c.terms[0].node.match(r))
	for _, t := range c.terms[1:] {
		v := apply(t.conj, t.node.match(r))
		if t.conj == ConjOr || t.conj == ConjOrNot {
			result = result || v
		} else {
			result = result && v
		}
	}
	return result
}

func apply(conj Conjunction, v bool) bool {
	if conj == ConjAndNot || conj == ConjOrNot {
		return !v
	}
	return v
}

type builder struct {
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

type comparison struct {
	field field
	op    Operator
	value any
}

func (c *comparison) sql(b *builder) string {
	column := c.field.column
	if c.field.kind == kindUUID {
		column += "::text"
	}
	// NULL columns compare as false, also under NOT.
	return fmt.Sprintf("COALESCE(%s %s %s, FALSE)", column, c.op, b.arg(c.value))
}

func (c *comparison) match(r Record) bool {
	got := c.field.get(r)
	if got == nil {
		return false
	}
	cmp, ok := compare(got, c.value)
	if !ok {
		return false
	}
	switch c.op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpLt:
		return cmp < 0
	case OpGe:
		return cmp >= 0
	case OpLe:
		return cmp <= 0
	}
	return false
}

func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return strings.Compare(x, y), ok
	case float64:
		y, ok := b.(float64)
		switch {
		case !ok:
			return 0, false
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case time.Time:
		y, ok := b.(time.Time)
		return x.Compare(y), ok
	case bool:
		y, ok := b.(bool)
		switch {
		case !ok:
			return 0, false
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

type identifierSubject struct {
	table  string
	owner  string
	column string
	decode func(string) (models.Identifier, bool)
	ids    func(Record) []models.Identifier
}

func compileMembership(s identifierSubject, p Predicate) (node, error) {
	if p.Operator != OpEq && p.Operator != OpNe {
		return nil, apperr.Request("operator %s is not supported for %s", p.Operator, p.Operand1)
	}
	id, ok := s.decode(p.Operand2)
	if !ok {
		return never{}, nil
	}
	collector := p.Collector
	if collector == CollectNone {
		collector = CollectAny
	}
	return &membership{subject: s, collector: collector, op: p.Operator, id: id}, nil
}

// membership tests a property holding a list of identifiers.
type membership struct {
	subject   identifierSubject
	collector Collector
	op        Operator
	id        models.Identifier
}

func (m *membership) sql(b *builder) string {
	hit := fmt.Sprintf("(i.id_type = %s AND i.value = %s)", b.arg(string(m.id.Type)), b.arg(m.id.Value))
	// element predicate, then quantified: any = EXISTS(pred), all = NOT EXISTS(NOT pred)
	pred := hit
	if m.op == OpNe {
		pred = "NOT " + hit
	}
	exists := "EXISTS"
	if m.collector == CollectAll {
		exists = "NOT EXISTS"
		pred = "NOT (" + pred + ")"
	}
	return fmt.Sprintf("%s (SELECT 1 FROM %s i WHERE i.%s = %s AND %s)",
		exists, m.subject.table, m.subject.owner, m.subject.column, pred)
}

func (m *membership) match(r Record) bool {
	ids := m.subject.ids(r)
	elem := func(id models.Identifier) bool {
		if m.op == OpNe {
			return id != m.id
		}
		return id == m.id
	}

	if m.collector == CollectAll {
		for _, id := range ids {
			if !elem(id) {
				return false
			}
		}
		return true
	}
	for _, id := range ids {
		if elem(id) {
			return true
		}
	}
	return false
}

// never stands in for an identifier whose URN scheme is unknown.
type never struct{}

func (never) sql(*builder) string { return "FALSE" }
func (never) match(Record) bool   { return false }
