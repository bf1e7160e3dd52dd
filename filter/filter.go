// Package filter selects test records with a small query language:
//
//	status:failure,ignored unit:core -name:/^TestSlow/
//
// Clauses are separated by whitespace and must all match. A clause is
// field:value[,value...] and matches when any value does. A leading "-"
// negates the clause. Fields are status, unit and name. Values are bare
// words, "quoted strings" or /regular expressions/. Words and strings
// match exactly, except for status where case is ignored.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rlch/spar/model"
)

// Sentinel errors for the filter package.
var (
	// ErrUnknownField is returned for a clause on an unsupported field.
	ErrUnknownField = errors.New("filter: unknown field")

	// ErrInvalidValue is returned for a value the field cannot hold.
	ErrInvalidValue = errors.New("filter: invalid value")
)

// Field names.
const (
	FieldStatus = "status"
	FieldUnit   = "unit"
	FieldName   = "name"
)

// Filter is a compiled query. The nil Filter matches everything.
type Filter struct {
	src     string
	clauses []clause
}

type clause struct {
	field    string
	negate   bool
	matchers []func(string) bool
}

// Parse compiles a query. An empty query matches everything.
func Parse(src string) (*Filter, error) {
	q, err := parser.ParseString("", src)
	if err != nil {
		return nil, err
	}

	f := &Filter{src: strings.TrimSpace(src)}

	for _, node := range q.Clauses {
		c, err := compile(node)
		if err != nil {
			return nil, err
		}

		f.clauses = append(f.clauses, c)
	}

	return f, nil
}

// MustParse is like Parse but panics on error.
func MustParse(src string) *Filter {
	f, err := Parse(src)
	if err != nil {
		panic(err)
	}

	return f
}

func compile(node *clauseNode) (clause, error) {
	c := clause{field: strings.ToLower(node.Field), negate: node.Negate}

	switch c.field {
	case FieldStatus, FieldUnit, FieldName:
	default:
		return c, fmt.Errorf("%s: %w %q", node.Pos, ErrUnknownField, node.Field)
	}

	for _, v := range node.Values {
		m, err := matcher(c.field, v)
		if err != nil {
			return c, fmt.Errorf("%s: %w", node.Pos, err)
		}

		c.matchers = append(c.matchers, m)
	}

	return c, nil
}

func matcher(field string, v *valueNode) (func(string) bool, error) {
	if v.Regex != nil {
		pattern := strings.TrimSuffix(strings.TrimPrefix(*v.Regex, "/"), "/")
		pattern = strings.ReplaceAll(pattern, `\/`, "/")

		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}

		return re.MatchString, nil
	}

	var word string

	switch {
	case v.String != nil:
		word = *v.String
	case v.Ident != nil:
		word = *v.Ident
	}

	if field == FieldStatus {
		status, err := model.ParseStatus(word)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}

		want := status.String()

		return func(s string) bool { return s == want }, nil
	}

	return func(s string) bool { return s == word }, nil
}

// Match reports whether r satisfies every clause.
func (f *Filter) Match(r *model.Record) bool {
	if f == nil {
		return true
	}

	for _, c := range f.clauses {
		if c.match(r) == c.negate {
			return false
		}
	}

	return true
}

func (c clause) match(r *model.Record) bool {
	var candidates []string

	switch c.field {
	case FieldStatus:
		candidates = []string{r.Status().String()}
	case FieldUnit:
		candidates = []string{r.UnitName()}
		if u := r.Unit(); u != nil {
			candidates = append(candidates, u.Identifier())
		}
	case FieldName:
		candidates = []string{r.Name()}
	}

	for _, m := range c.matchers {
		for _, s := range candidates {
			if m(s) {
				return true
			}
		}
	}

	return false
}

// Apply returns the records that match, preserving order.
func (f *Filter) Apply(records []*model.Record) []*model.Record {
	if f == nil || len(f.clauses) == 0 {
		return records
	}

	var out []*model.Record

	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}

	return out
}

// String returns the query source.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}

	return f.src
}
