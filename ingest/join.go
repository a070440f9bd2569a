package ingest

import (
	"fmt"

	"github.com/warp/incentive-engine/incentive"
)

// JoinSpec describes how two uploads are merged.
type JoinSpec struct {
	KeyA     string
	KeyB     string
	Suffixes [2]string
}

// DefaultSuffixes are appended to overlapping column names.
var DefaultSuffixes = [2]string{"_A", "_B"}

// OuterJoin merges a and b on their key columns.
//
// Key values are compared after CleanKey. Rows present on only one side
// are kept with the other side's columns empty. When both keys share a
// name the key appears once; any other column name present on both sides
// is kept twice with the configured suffixes. Repeated keys produce every
// pairing. Output order: rows of a in order (each followed by its b
// matches), then unmatched rows of b.
//
// A nil or empty side returns a copy of the other side unchanged.
func OuterJoin(a, b *Table, js JoinSpec) (*Table, error) {
	if js.Suffixes == ([2]string{}) {
		js.Suffixes = DefaultSuffixes
	}
	if a == nil || len(a.Columns) == 0 {
		return cloneTable(b), nil
	}
	if b == nil || len(b.Columns) == 0 {
		return cloneTable(a), nil
	}

	ka, kb := a.ColumnIndex(js.KeyA), b.ColumnIndex(js.KeyB)
	if ka < 0 {
		return nil, fmt.Errorf("%w in file A: %s", ErrUnknownColumn, js.KeyA)
	}
	if kb < 0 {
		return nil, fmt.Errorf("%w in file B: %s", ErrUnknownColumn, js.KeyB)
	}
	sharedKey := js.KeyA == js.KeyB

	inA := make(map[string]bool, len(a.Columns))
	for _, c := range a.Columns {
		inA[c] = true
	}
	inB := make(map[string]bool, len(b.Columns))
	for _, c := range b.Columns {
		inB[c] = true
	}
	overlaps := func(name string) bool {
		return inA[name] && inB[name] && !(sharedKey && name == js.KeyA)
	}

	// Output layout: a's columns, then b's columns minus a shared key.
	out := &Table{}
	for _, c := range a.Columns {
		if overlaps(c) {
			c += js.Suffixes[0]
		}
		out.Columns = append(out.Columns, c)
	}
	bPos := make([]int, len(b.Columns))
	for j, c := range b.Columns {
		if sharedKey && j == kb {
			bPos[j] = ka
			continue
		}
		if overlaps(c) {
			c += js.Suffixes[1]
		}
		bPos[j] = len(out.Columns)
		out.Columns = append(out.Columns, c)
	}

	index := make(map[string][]int, len(b.Rows))
	for j, row := range b.Rows {
		if key := CleanKey(cell(row, kb)); key != "" {
			index[key] = append(index[key], j)
		}
	}

	matchedB := make([]bool, len(b.Rows))
	width := len(out.Columns)

	for _, ra := range a.Rows {
		var matches []int
		if key := CleanKey(cell(ra, ka)); key != "" {
			matches = index[key]
		}
		if len(matches) == 0 {
			row := make([]string, width)
			copy(row[:len(a.Columns)], ra)
			out.Rows = append(out.Rows, row)
			continue
		}
		for _, j := range matches {
			matchedB[j] = true
			row := make([]string, width)
			copy(row[:len(a.Columns)], ra)
			placeB(row, b.Rows[j], bPos, sharedKey, kb)
			out.Rows = append(out.Rows, row)
		}
	}

	for j, rb := range b.Rows {
		if matchedB[j] {
			continue
		}
		row := make([]string, width)
		placeB(row, rb, bPos, sharedKey, kb)
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func placeB(dst, src []string, pos []int, sharedKey bool, kb int) {
	for j, p := range pos {
		v := cell(src, j)
		if sharedKey && j == kb && dst[p] != "" {
			continue
		}
		dst[p] = v
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func cloneTable(t *Table) *Table {
	if t == nil {
		return &Table{}
	}
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for _, r := range t.Rows {
		out.Rows = append(out.Rows, append([]string(nil), r...))
	}
	return out
}

// =============================================================================
// MANAGER LOOKUP
// =============================================================================

// ByManager returns the records whose manager column matches code. Every
// configured column is tried through the resolver's candidates, so a code
// held only in "매니저코드_B" still matches.
func ByManager(records []incentive.Record, r *incentive.Resolver, managerColumns []string, code string) []incentive.Record {
	want := CleanKey(code)
	if want == "" {
		return nil
	}
	var out []incentive.Record
	for _, rec := range records {
		if managedBy(rec, r, managerColumns, want) {
			out = append(out, rec)
		}
	}
	return out
}

func managedBy(rec incentive.Record, r *incentive.Resolver, columns []string, want string) bool {
	for _, col := range columns {
		for _, name := range r.Candidates(col) {
			v, ok := rec.Fields[name]
			if !ok {
				continue
			}
			if CleanKey(fmt.Sprint(v)) == want {
				return true
			}
		}
	}
	return false
}
