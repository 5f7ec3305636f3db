package common

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPaginationParams(t *testing.T) {
	tests := []struct {
		query string
		want  PaginationParams
	}{
		{query: "", want: PaginationParams{Page: 1, PageSize: 20}},
		{query: "page=3&page_size=5", want: PaginationParams{Page: 3, PageSize: 5}},
		{query: "page=0&page_size=-1", want: PaginationParams{Page: 1, PageSize: 20}},
		{query: "page=x&page_size=1000", want: PaginationParams{Page: 1, PageSize: MaxPageSize}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/assets?"+tt.query, nil)
			assert.Equal(t, tt.want, ExtractPaginationParams(r))
		})
	}
}

func TestBuildPaginationMeta(t *testing.T) {
	meta := BuildPaginationMeta(2, 3, 7)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)

	meta = BuildPaginationMeta(1, 10, 0)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasNext)
	assert.False(t, meta.HasPrev)

	assert.Equal(t, 10, PaginationParams{Page: 3, PageSize: 5}.CalculateOffset())
}

func TestRespondWithMeta(t *testing.T) {
	r := httptest.NewRequest("GET", "/assets", nil)
	r = r.WithContext(WithRequestID(r.Context(), "req-1"))
	w := httptest.NewRecorder()

	RespondWithMeta(w, r, 200, []string{"a"}, &MetaInfo{Pagination: BuildPaginationMeta(1, 20, 1)})

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.NotNil(t, body.Meta)
	assert.Equal(t, "req-1", body.Meta.RequestID)
	assert.NotEmpty(t, body.Meta.Timestamp)
	assert.Equal(t, 1, body.Meta.Pagination.Total)
}

func TestRespondError(t *testing.T) {
	w := httptest.NewRecorder()
	RespondError(w, 429, StandardErrorCodes.TooManyRequests, "slow down")

	assert.Equal(t, 429, w.Code)
	var body APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "TOO_MANY_REQUESTS", body.Error.Code)
}

func TestReadBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"a":1}`))
	body, err := ReadBody(httptest.NewRecorder(), r, 64)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))

	r = httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 65)))
	_, err = ReadBody(httptest.NewRecorder(), r, 64)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestExtractMetadata(t *testing.T) {
	ctx := EnrichContext(context.Background(), "req-9", time.Now().Add(-time.Second))
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithDomainHint(ctx, "material")

	meta := ExtractMetadata(ctx)
	assert.Equal(t, "req-9", meta.RequestID)
	assert.Equal(t, "trace-1", meta.TraceID)
	assert.Equal(t, "material", meta.DomainHint)
	assert.GreaterOrEqual(t, meta.Duration, time.Second)

	assert.Empty(t, GetDomainHint(context.Background()))
}
