package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

func TestSearchRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  SearchRequest
		want error
	}{
		{"structural without query", SearchRequest{Directory: "/data"}, nil},
		{"semantic without query", SearchRequest{Semantic: true}, ErrEmptyQuery},
		{"llm with blank query", SearchRequest{LLM: true, Query: "  "}, ErrEmptyQuery},
		{"negative top_k", SearchRequest{TopK: -1}, ErrInvalidTopK},
		{"huge top_k", SearchRequest{TopK: MaxTopK + 1}, ErrInvalidTopK},
		{"bad type", SearchRequest{Type: "symlink"}, ErrInvalidType},
		{"directory type", SearchRequest{Type: "directory"}, nil},
		{"negative size", SearchRequest{MinSize: int64p(-1)}, ErrInvalidSize},
		{"size range", SearchRequest{MinSize: int64p(10), MaxSize: int64p(5)}, ErrSizeRange},
		{"bad timestamp", SearchRequest{ModifiedAfter: "last tuesday"}, ErrInvalidTimestamp},
		{"time range", SearchRequest{ModifiedAfter: "2024-02-01", ModifiedBefore: "2024-01-01"}, ErrTimeRange},
		{"valid range", SearchRequest{ModifiedAfter: "2024-01-01", ModifiedBefore: "2024-02-01T10:00:00Z"}, nil},
		{"same day", SearchRequest{ModifiedAfter: "2024-01-01T15:00:00Z", ModifiedBefore: "2024-01-01"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("")
	require.NoError(t, err)
	assert.Nil(t, ts)

	ts, err = ParseTimestamp("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *ts)

	ts, err = ParseTimestamp("2024-03-01T12:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), ts.UTC())
}

func TestParseUpperBound(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *time.Time
	}{
		{"empty", "", nil},
		{"bare date covers the day", "2024-03-01", timep(time.Date(2024, 3, 1, 23, 59, 59, 999999999, time.UTC))},
		{"padded bare date", " 2024-12-31 ", timep(time.Date(2024, 12, 31, 23, 59, 59, 999999999, time.UTC))},
		{"explicit time kept", "2024-03-01T12:30:00Z", timep(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC))},
		{"midnight kept", "2024-03-01T00:00:00Z", timep(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUpperBound(tt.in)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v", got)
		})
	}

	_, err := ParseUpperBound("yesterday")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func timep(t time.Time) *time.Time { return &t }

func TestIndexAndTreeRequest_Validate(t *testing.T) {
	assert.ErrorIs(t, (&IndexRequest{}).Validate(), ErrPathRequired)
	assert.NoError(t, (&IndexRequest{Path: "/data"}).Validate())

	assert.ErrorIs(t, (&TreeRequest{}).Validate(), ErrPathRequired)
	assert.ErrorIs(t, (&TreeRequest{Directory: "/data", MaxEntries: -1}).Validate(), ErrInvalidMaxEntries)
	assert.NoError(t, (&TreeRequest{Directory: "/data"}).Validate())
}

func TestFileResult_Validate(t *testing.T) {
	assert.ErrorIs(t, (&FileResult{}).Validate(), ErrMissingRecordPath)
	assert.ErrorIs(t, (&FileResult{Path: "/a", Score: math.NaN()}).Validate(), ErrInvalidResultScore)
	assert.NoError(t, (&FileResult{Path: "/a", Score: 0.5}).Validate())
}
