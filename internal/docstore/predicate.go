package docstore

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Predicate is a composable boolean expression over document fields.
// Fields are addressed by their JSON path in the stored document, so
// predicates stay independent of the storage engine. Predicates are
// built with Eq, In, AnyOf, Before, After, And, and Or; the match
// method is unexported to keep evaluation inside this package.
type Predicate interface {
	fmt.Stringer

	match(doc gjson.Result) bool
}

type eqPred struct {
	field string
	want  string
}

// Eq matches documents whose field equals want exactly. Never
// substring or case-insensitive; normalization happens at write time.
func Eq(field, want string) Predicate {
	return eqPred{field: field, want: want}
}

func (p eqPred) match(doc gjson.Result) bool {
	v := doc.Get(p.field)

	return v.Type == gjson.String && v.Str == p.want
}

func (p eqPred) String() string {
	return fmt.Sprintf("%s == %q", p.field, p.want)
}

type inPred struct {
	field string
	want  []string
}

// In matches documents whose scalar field value is one of want.
// An empty want set matches nothing.
func In(field string, want ...string) Predicate {
	return inPred{field: field, want: want}
}

func (p inPred) match(doc gjson.Result) bool {
	v := doc.Get(p.field)
	if v.Type != gjson.String {
		return false
	}

	return slices.Contains(p.want, v.Str)
}

func (p inPred) String() string {
	return fmt.Sprintf("%s in [%s]", p.field, strings.Join(p.want, ", "))
}

type anyOfPred struct {
	field string
	want  []string
}

// AnyOf matches documents whose array field contains at least one of
// want. An empty want set matches nothing, never everything.
func AnyOf(field string, want ...string) Predicate {
	return anyOfPred{field: field, want: want}
}

func (p anyOfPred) match(doc gjson.Result) bool {
	v := doc.Get(p.field)
	if !v.IsArray() {
		return false
	}

	for _, el := range v.Array() {
		if el.Type == gjson.String && slices.Contains(p.want, el.Str) {
			return true
		}
	}

	return false
}

func (p anyOfPred) String() string {
	return fmt.Sprintf("%s contains any of [%s]", p.field, strings.Join(p.want, ", "))
}

type timePred struct {
	field  string
	bound  time.Time
	before bool
}

// Before matches documents whose RFC3339 timestamp field is strictly
// earlier than bound. Fields that are absent or unparsable do not match.
func Before(field string, bound time.Time) Predicate {
	return timePred{field: field, bound: bound, before: true}
}

// After matches documents whose RFC3339 timestamp field is strictly
// later than bound.
func After(field string, bound time.Time) Predicate {
	return timePred{field: field, bound: bound}
}

func (p timePred) match(doc gjson.Result) bool {
	v := doc.Get(p.field)
	if v.Type != gjson.String {
		return false
	}

	ts, err := time.Parse(time.RFC3339Nano, v.Str)
	if err != nil {
		return false
	}

	if p.before {
		return ts.Before(p.bound)
	}

	return ts.After(p.bound)
}

func (p timePred) String() string {
	op := "after"
	if p.before {
		op = "before"
	}

	return fmt.Sprintf("%s %s %s", p.field, op, p.bound.Format(time.RFC3339Nano))
}

type andPred struct {
	preds []Predicate
}

// And matches documents matching every given predicate. And() with no
// arguments matches everything.
func And(preds ...Predicate) Predicate {
	return andPred{preds: preds}
}

func (p andPred) match(doc gjson.Result) bool {
	for _, sub := range p.preds {
		if !sub.match(doc) {
			return false
		}
	}

	return true
}

func (p andPred) String() string {
	return joinPreds(p.preds, " && ")
}

type orPred struct {
	preds []Predicate
}

// Or matches documents matching at least one of the given predicates.
func Or(preds ...Predicate) Predicate {
	return orPred{preds: preds}
}

func (p orPred) match(doc gjson.Result) bool {
	for _, sub := range p.preds {
		if sub.match(doc) {
			return true
		}
	}

	return false
}

func (p orPred) String() string {
	return joinPreds(p.preds, " || ")
}

func joinPreds(preds []Predicate, sep string) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.String()
	}

	return "(" + strings.Join(parts, sep) + ")"
}
