/*
resolver.go - Logical field lookup over alias-suffixed columns

PURPOSE:
  Records come from an outer-joined merge of two independently structured
  files. When both files carry a column with the same name the merge keeps
  both, suffixed (e.g. "실적_A" and "실적_B"). A scheme refers to the
  logical name ("실적"); the resolver finds whichever physical column
  actually holds the value for this row.

LOOKUP ORDER:
  1. Exact field name
  2. Explicit alias table entries, in configured order
  3. logicalName + suffix, for each suffix in preference order
  A candidate whose value normalizes to absent is skipped, so a row that
  only exists in file B still resolves through the "_B" column.

NORMALIZATION:
  - Whitespace trimmed
  - "nan", "none" (any case) and "" are absent
  - Trailing ".0" spreadsheet artifact stripped from the text form
  - Thousands separators stripped before numeric parsing

FAIL-SOFT:
  ResolveNumeric never fails: absent or unparsable values read as zero, so
  one malformed cell cannot abort the evaluation of a whole record.
  ParseNumeric is the strict form for callers that must tell "0" apart
  from "not a number" (the eligibility gate).
*/
package incentive

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultSuffixes match the merge collaborator's default suffixes.
var DefaultSuffixes = []string{"_A", "_B"}

// Value is a resolved, normalized field.
type Value struct {
	Field string // physical column that matched
	Raw   any
	Text  string
}

// Resolver maps logical field names onto physical record columns.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	suffixes []string
	aliases  map[string][]string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSuffixes sets the alias suffixes in preference order.
func WithSuffixes(suffixes ...string) ResolverOption {
	return func(r *Resolver) {
		r.suffixes = append([]string(nil), suffixes...)
	}
}

// WithAliases adds an explicit alias table (logical name -> physical names).
func WithAliases(aliases map[string][]string) ResolverOption {
	return func(r *Resolver) {
		for logical, physical := range aliases {
			r.aliases[logical] = append([]string(nil), physical...)
		}
	}
}

// NewResolver creates a resolver. Without options it uses DefaultSuffixes.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		suffixes: append([]string(nil), DefaultSuffixes...),
		aliases:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Candidates returns the physical names tried for a logical name, in order.
func (r *Resolver) Candidates(logical string) []string {
	out := make([]string, 0, 1+len(r.aliases[logical])+len(r.suffixes))
	out = append(out, logical)
	out = append(out, r.aliases[logical]...)
	for _, s := range r.suffixes {
		out = append(out, logical+s)
	}
	return out
}

// Resolve finds the first candidate column holding a non-absent value.
func (r *Resolver) Resolve(rec Record, logical string) (Value, bool) {
	if logical == "" || rec.Fields == nil {
		return Value{}, false
	}
	for _, name := range r.Candidates(logical) {
		raw, ok := rec.Fields[name]
		if !ok {
			continue
		}
		text, present := normalize(raw)
		if !present {
			continue
		}
		return Value{Field: name, Raw: raw, Text: text}, true
	}
	return Value{}, false
}

// HasField reports whether any candidate column exists in the record,
// regardless of its value.
func (r *Resolver) HasField(rec Record, logical string) bool {
	if logical == "" {
		return false
	}
	for _, name := range r.Candidates(logical) {
		if _, ok := rec.Fields[name]; ok {
			return true
		}
	}
	return false
}

// ParseNumeric resolves a field and parses it as a number.
// Errors wrap ErrMissingField or ErrUnparsableNumeric.
func (r *Resolver) ParseNumeric(rec Record, logical string) (decimal.Decimal, error) {
	v, ok := r.Resolve(rec, logical)
	if !ok {
		return decimal.Zero, &FieldError{Field: logical, Err: ErrMissingField}
	}
	if d, ok := v.Raw.(decimal.Decimal); ok {
		return d, nil
	}
	d, err := parseDecimal(v.Text)
	if err != nil {
		return decimal.Zero, &FieldError{Field: logical, Raw: v.Text, Err: ErrUnparsableNumeric}
	}
	return d, nil
}

// ResolveNumeric is the fail-soft numeric read: zero on absent or garbage.
func (r *Resolver) ResolveNumeric(rec Record, logical string) decimal.Decimal {
	d, err := r.ParseNumeric(rec, logical)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// NORMALIZATION
// =============================================================================

func normalize(raw any) (string, bool) {
	var s string
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return normalize(float64(v))
	case decimal.Decimal:
		s = v.String()
	case *decimal.Decimal:
		if v == nil {
			return "", false
		}
		s = v.String()
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}

	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "none":
		return "", false
	}
	s = strings.TrimSuffix(s, ".0")
	return s, true
}

func parseDecimal(text string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(text, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	return decimal.NewFromString(cleaned)
}
