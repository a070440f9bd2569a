package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/incentive"
)

// ErrInvalidCondition is returned for a condition that cannot be parsed.
var ErrInvalidCondition = errors.New("invalid condition")

// =============================================================================
// CONDITIONS
// =============================================================================

// Comparison is a parsed condition such as ">= 100,000" or "== '정상'".
//
// A numeric operand compares the field as a number: absent, blank and
// unparsable values count as 0 and thousands separators are ignored. A
// text operand only supports == and != and compares the trimmed text.
// A single "=" means "==".
type Comparison struct {
	Op      string
	Operand string
	number  decimal.Decimal
	numeric bool
}

var comparisonPattern = regexp.MustCompile(`^(==|!=|>=|<=|=|>|<)\s*(.+)$`)

// ParseComparison parses a condition expression.
func ParseComparison(expr string) (Comparison, error) {
	m := comparisonPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return Comparison{}, fmt.Errorf("%w: %q", ErrInvalidCondition, expr)
	}
	c := Comparison{Op: m[1], Operand: strings.TrimSpace(m[2])}
	if c.Op == "=" {
		c.Op = "=="
	}

	if d, err := decimal.NewFromString(strings.ReplaceAll(c.Operand, ",", "")); err == nil {
		c.number, c.numeric = d, true
		return c, nil
	}

	c.Operand = unquote(c.Operand)
	if c.Op != "==" && c.Op != "!=" {
		return Comparison{}, fmt.Errorf("%w: %s needs a numeric operand: %q", ErrInvalidCondition, c.Op, expr)
	}
	return c, nil
}

// Match evaluates the comparison against a record field.
func (c Comparison) Match(rec incentive.Record, r *incentive.Resolver, field string) bool {
	if !c.numeric {
		v, _ := r.Resolve(rec, field)
		equal := v.Text == c.Operand
		if c.Op == "==" {
			return equal
		}
		return !equal
	}

	n := r.ResolveNumeric(rec, field)
	switch c.Op {
	case "==":
		return n.Equal(c.number)
	case "!=":
		return !n.Equal(c.number)
	case ">=":
		return n.GreaterThanOrEqual(c.number)
	case "<=":
		return n.LessThanOrEqual(c.number)
	case ">":
		return n.GreaterThan(c.number)
	case "<":
		return n.LessThan(c.number)
	}
	return false
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Condition applies a comparison to one column.
type Condition struct {
	Column    string `json:"column"`
	Condition string `json:"condition"`
}

// =============================================================================
// MANAGER VIEW
// =============================================================================

// Category tags records that meet all of its conditions.
type Category struct {
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
}

// DisplayColumn is one column of the manager view. A numeric column with a
// condition also filters the view; Fallback is read when Column is empty.
type DisplayColumn struct {
	Column      string `json:"column"`
	Fallback    string `json:"fallback,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Numeric     bool   `json:"numeric,omitempty"`
	Condition   string `json:"condition,omitempty"`
}

// Name returns the header shown for the column.
func (d DisplayColumn) Name() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Column
}

// View configures how a manager's records are tagged, filtered and shown.
type View struct {
	Categories []Category      `json:"categories"`
	Columns    []DisplayColumn `json:"columns"`
}

// DisplayValue is one shown cell.
type DisplayValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ViewRow is a record that passed the view's filters.
type ViewRow struct {
	Record incentive.Record
	Tags   []string
	Values []DisplayValue
}

// Validate parses every condition of the view.
func (v View) Validate() error {
	_, _, err := v.compile()
	return err
}

type compiledCondition struct {
	column string
	cmp    Comparison
}

func (v View) compile() ([][]compiledCondition, []*Comparison, error) {
	cats := make([][]compiledCondition, len(v.Categories))
	for i, cat := range v.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return nil, nil, fmt.Errorf("%w: category %d has no name", ErrInvalidCondition, i)
		}
		for _, cond := range cat.Conditions {
			if cond.Column == "" {
				continue
			}
			cmp, err := ParseComparison(cond.Condition)
			if err != nil {
				return nil, nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}
			cats[i] = append(cats[i], compiledCondition{column: cond.Column, cmp: cmp})
		}
		if len(cats[i]) == 0 {
			return nil, nil, fmt.Errorf("%w: category %s has no conditions", ErrInvalidCondition, cat.Name)
		}
	}

	filters := make([]*Comparison, len(v.Columns))
	for i, col := range v.Columns {
		if col.Column == "" {
			return nil, nil, fmt.Errorf("%w: display column %d has no column", ErrInvalidCondition, i)
		}
		if !col.Numeric || strings.TrimSpace(col.Condition) == "" {
			continue
		}
		cmp, err := ParseComparison(col.Condition)
		if err != nil {
			return nil, nil, fmt.Errorf("column %s: %w", col.Column, err)
		}
		filters[i] = &cmp
	}
	return cats, filters, nil
}

// Apply tags, filters and projects records. Order is kept.
func (v View) Apply(records []incentive.Record, r *incentive.Resolver) ([]ViewRow, error) {
	cats, filters, err := v.compile()
	if err != nil {
		return nil, err
	}

	out := make([]ViewRow, 0, len(records))
next:
	for _, rec := range records {
		for i, f := range filters {
			if f != nil && !f.Match(rec, r, v.Columns[i].Column) {
				continue next
			}
		}

		row := ViewRow{Record: rec}
		for i, conds := range cats {
			if matchAll(rec, r, conds) {
				row.Tags = append(row.Tags, v.Categories[i].Name)
			}
		}
		row.Values = v.Display(rec, r)
		out = append(out, row)
	}
	return out, nil
}

// Display returns the display cells of one record without filtering.
func (v View) Display(rec incentive.Record, r *incentive.Resolver) []DisplayValue {
	var out []DisplayValue
	for _, col := range v.Columns {
		out = append(out, DisplayValue{Name: col.Name(), Value: displayValue(rec, r, col)})
	}
	return out
}

func matchAll(rec incentive.Record, r *incentive.Resolver, conds []compiledCondition) bool {
	for _, c := range conds {
		if !c.cmp.Match(rec, r, c.column) {
			return false
		}
	}
	return true
}

func displayValue(rec incentive.Record, r *incentive.Resolver, col DisplayColumn) string {
	if v, ok := r.Resolve(rec, col.Column); ok {
		return v.Text
	}
	if col.Fallback != "" {
		if v, ok := r.Resolve(rec, col.Fallback); ok {
			return v.Text
		}
	}
	return ""
}

// TagLabel renders tags the way the manager view shows them: "[A] [B]".
func TagLabel(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "[" + t + "]"
	}
	return strings.Join(parts, " ")
}
