package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/sqlshift/pkg/core"
)

func TestConvertQueryEncodesAndDecodes(t *testing.T) {
	var gotQuery string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		decoded, err := DecodeQuery(req.OriginalQuery)
		require.NoError(t, err)
		gotQuery = decoded
		writeJSON(w, http.StatusOK, ConvertResponse{
			Success:        true,
			ConvertedQuery: EncodeQuery("SELECT * FROM t LIMIT 10"),
			Warnings:       []string{"TOP rewritten as LIMIT"},
		})
	})

	c, _ := newTestClient(t, h, nil)
	res, err := c.ConvertQuery(context.Background(), "SELECT TOP 10 * FROM t")
	require.NoError(t, err)

	assert.Equal(t, "SELECT TOP 10 * FROM t", gotQuery)
	assert.True(t, res.Success)
	assert.Equal(t, "SELECT * FROM t LIMIT 10", res.ConvertedQuery)
	assert.Equal(t, []string{"TOP rewritten as LIMIT"}, res.Warnings)
}

func TestConvertQueryFailureIsNotDecoded(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ConvertResponse{
			Success:        false,
			ConvertedQuery: "%%%not-base64",
			Warnings:       []string{"unsupported construct: MERGE"},
		})
	})

	c, rec := newTestClient(t, h, nil)
	res, err := c.ConvertQuery(context.Background(), "MERGE INTO t ...")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.ConvertedQuery)
	assert.Equal(t, []string{"unsupported construct: MERGE"}, res.Warnings)
	assert.Empty(t, rec.titles(), "success:false is not a transport error")
}

func TestFormatAndMinifyUseTheirPaths(t *testing.T) {
	var paths []string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		writeJSON(w, http.StatusOK, FormatResponse{Success: true, FormattedQuery: EncodeQuery("select 1")})
	})

	c, _ := newTestClient(t, h, nil)
	f, err := c.FormatQuery(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "select 1", f.FormattedQuery)

	_, err = c.MinifyQuery(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, []string{PathFormat, PathMinify}, paths)
}

func TestListLogsDecodesRecords(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"log_id":"1","log_type":"error","log_endpoint":"/sql-migration/convert",
			"log_location":"converter","log_owner":"api","log_severity":"high","log_title":"Parse failure",
			"log_message":"unexpected token","created_at":"2026-10-19T08:00:00Z"}]`))
	})

	c, _ := newTestClient(t, h, nil)
	recs, err := c.ListLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, core.LogRecord{
		ID: "1", Type: "error", Endpoint: "/sql-migration/convert", Location: "converter", Owner: "api",
		Severity: "high", Title: "Parse failure", Message: "unexpected token",
		CreatedAt: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
	}, recs[0])
}

func TestEncodeQueryUnicode(t *testing.T) {
	q := "SELECT N'café' AS name"
	got, err := DecodeQuery(EncodeQuery(q))
	require.NoError(t, err)
	assert.Equal(t, q, got)
}
