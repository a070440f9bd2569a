package ingest_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/ingest"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

func mustRead(t *testing.T, csv string) *ingest.Table {
	t.Helper()
	tbl, err := ingest.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

// =============================================================================
// READING
// =============================================================================

func TestReadCSV_Basic(t *testing.T) {
	tbl := mustRead(t, "\ufeff코드,이름, 실적 \nA1,김,350000\n\n,,\nA2,이,\"1,000\"\n")

	assert.Equal(t, []string{"코드", "이름", "실적"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "1,000", tbl.Rows[1][2])
}

func TestReadCSV_EUCKR(t *testing.T) {
	// GIVEN: A Korean-locale spreadsheet export (not UTF-8)
	// THEN: It is decoded transparently

	encoded, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte("코드,실적\nA1,100\n"))
	require.NoError(t, err)

	tbl, err := ingest.ReadCSV(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, []string{"코드", "실적"}, tbl.Columns)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ingest.ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ingest.ErrEmptyFile)
}

func TestReadCSV_DuplicateHeaders(t *testing.T) {
	tbl := mustRead(t, "a,a,,a\n1,2,3,4\n")
	assert.Equal(t, []string{"a", "a.1", "Unnamed: 2", "a.2"}, tbl.Columns)
}

func TestDecodeExcelEscapes(t *testing.T) {
	assert.Equal(t, "line\nbreak", ingest.DecodeExcelEscapes("line_x000A_break"))
	assert.Equal(t, "plain_text", ingest.DecodeExcelEscapes("plain_text"))
	assert.Equal(t, "_xZZZZ_", ingest.DecodeExcelEscapes("_xZZZZ_"))
}

func TestCleanKey(t *testing.T) {
	tests := map[string]string{
		"a12 3.0": "A123",
		" b77 ":   "B77",
		"12345.0": "12345",
		"nan":     "",
		"":        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ingest.CleanKey(in), "input %q", in)
	}
}

// =============================================================================
// OUTER JOIN
// =============================================================================

func TestOuterJoin_SharedKey(t *testing.T) {
	// GIVEN: Two files keyed on the same column, both carrying "실적"
	// WHEN: Joining
	// THEN: Key collapses, "실적" is suffixed, unmatched rows are kept

	a := mustRead(t, "코드,이름,실적\nA1,김,100\nA2,이,200\n")
	b := mustRead(t, "코드,실적,시상금\na1.0,300,5000\nB9,400,6000\n")

	out, err := ingest.OuterJoin(a, b, ingest.JoinSpec{KeyA: "코드", KeyB: "코드"})
	require.NoError(t, err)

	assert.Equal(t, []string{"코드", "이름", "실적_A", "실적_B", "시상금"}, out.Columns)
	require.Equal(t, 3, out.Len())
	assert.Equal(t, []string{"A1", "김", "100", "300", "5000"}, out.Rows[0])
	assert.Equal(t, []string{"A2", "이", "200", "", ""}, out.Rows[1])
	assert.Equal(t, []string{"B9", "", "", "400", "6000"}, out.Rows[2])
}

func TestOuterJoin_DifferentKeys(t *testing.T) {
	a := mustRead(t, "사번,실적\nA1,100\n")
	b := mustRead(t, "설계사코드,실적\nA1,300\n")

	out, err := ingest.OuterJoin(a, b, ingest.JoinSpec{KeyA: "사번", KeyB: "설계사코드"})
	require.NoError(t, err)

	assert.Equal(t, []string{"사번", "실적_A", "설계사코드", "실적_B"}, out.Columns)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []string{"A1", "100", "A1", "300"}, out.Rows[0])
}

func TestOuterJoin_OneSideEmpty(t *testing.T) {
	a := mustRead(t, "코드,실적\nA1,100\n")

	out, err := ingest.OuterJoin(a, nil, ingest.JoinSpec{KeyA: "코드", KeyB: "코드"})
	require.NoError(t, err)
	assert.Equal(t, a.Columns, out.Columns)
	assert.Equal(t, a.Rows, out.Rows)
}

func TestOuterJoin_UnknownKey(t *testing.T) {
	a := mustRead(t, "코드\nA1\n")
	b := mustRead(t, "id\nA1\n")

	_, err := ingest.OuterJoin(a, b, ingest.JoinSpec{KeyA: "코드", KeyB: "코드"})
	assert.ErrorIs(t, err, ingest.ErrUnknownColumn)
}

// =============================================================================
// RECORDS
// =============================================================================

func TestRecords_FeedTheEngine(t *testing.T) {
	// GIVEN: A merged table where one agent only exists in file B
	// WHEN: Converting to records and evaluating a ladder on "실적"
	// THEN: The resolver reads "실적_B" for that agent

	a := mustRead(t, "코드,실적\nA1,350000\n")
	b := mustRead(t, "코드,실적\nB2,120000\n")
	merged, err := ingest.OuterJoin(a, b, ingest.JoinSpec{KeyA: "코드", KeyB: "코드"})
	require.NoError(t, err)

	records, err := merged.Records("코드")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "B2", records[1].Key)
	_, hasA := records[1].Fields["실적_A"]
	assert.False(t, hasA, "empty cells are omitted")

	r := incentive.NewResolver()
	assert.Equal(t, "120000", mustResolve(t, r, records[1], "실적"))
	assert.Equal(t, "350000", mustResolve(t, r, records[0], "실적"))
}

func TestRecords_FallbackKey(t *testing.T) {
	// GIVEN: Files keyed by different column names
	// WHEN: Converting the merged table with both key columns
	// THEN: Rows only present in file B are keyed by its column

	a := mustRead(t, "사번,실적\nA1,100\n")
	b := mustRead(t, "설계사코드,실적\na1,300\nb2 ,50\n")
	merged, err := ingest.OuterJoin(a, b, ingest.JoinSpec{KeyA: "사번", KeyB: "설계사코드"})
	require.NoError(t, err)

	records, err := merged.Records("사번", "설계사코드")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A1", records[0].Key)
	assert.Equal(t, "B2", records[1].Key)

	_, err = merged.Records("사번", "없음")
	assert.ErrorIs(t, err, ingest.ErrUnknownColumn)
	_, err = merged.Records()
	assert.ErrorIs(t, err, ingest.ErrUnknownColumn)
}

func TestByManager(t *testing.T) {
	tbl := mustRead(t, "코드,매니저코드_A,매니저코드_B,지원매니저\nA1,M1.0,,\nA2,,m1,\nA3,M2,,\nA4,,,M1\n")
	records, err := tbl.Records("코드")
	require.NoError(t, err)

	got := ingest.ByManager(records, incentive.NewResolver(), []string{"매니저코드", "지원매니저"}, "m1 ")

	var keys []string
	for _, r := range got {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"A1", "A2", "A4"}, keys)
	assert.Empty(t, ingest.ByManager(records, incentive.NewResolver(), []string{"매니저코드"}, ""))
}

func mustResolve(t *testing.T, r *incentive.Resolver, rec incentive.Record, field string) string {
	t.Helper()
	v, ok := r.Resolve(rec, field)
	require.True(t, ok)
	return v.Text
}
