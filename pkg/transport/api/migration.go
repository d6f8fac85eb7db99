package api

import (
	"context"
	"net/http"

	"github.com/modoterra/sqlshift/pkg/core"
)

// ConvertQuery submits query for conversion to PostgreSQL. The converted
// query is decoded only when the service reports success.
func (c *Client) ConvertQuery(ctx context.Context, query string) (core.ConversionResult, error) {
	var resp ConvertResponse
	req := QueryRequest{OriginalQuery: EncodeQuery(query)}
	if err := c.Request(ctx, http.MethodPost, PathConvert, nil, req, &resp); err != nil {
		return core.ConversionResult{}, err
	}

	result := core.ConversionResult{Success: resp.Success, Warnings: resp.Warnings}
	if resp.Success {
		decoded, err := DecodeQuery(resp.ConvertedQuery)
		if err != nil {
			c.report(err)
			return core.ConversionResult{}, err
		}
		result.ConvertedQuery = decoded
	}
	return result, nil
}

// FormatQuery pretty-prints query.
func (c *Client) FormatQuery(ctx context.Context, query string) (core.FormatResult, error) {
	return c.formatting(ctx, PathFormat, query)
}

// MinifyQuery collapses query onto as few characters as possible.
func (c *Client) MinifyQuery(ctx context.Context, query string) (core.FormatResult, error) {
	return c.formatting(ctx, PathMinify, query)
}

func (c *Client) formatting(ctx context.Context, path, query string) (core.FormatResult, error) {
	var resp FormatResponse
	req := QueryRequest{OriginalQuery: EncodeQuery(query)}
	if err := c.Request(ctx, http.MethodPost, path, nil, req, &resp); err != nil {
		return core.FormatResult{}, err
	}

	result := core.FormatResult{Success: resp.Success, Warnings: resp.Warnings}
	if resp.Success {
		decoded, err := DecodeQuery(resp.FormattedQuery)
		if err != nil {
			c.report(err)
			return core.FormatResult{}, err
		}
		result.FormattedQuery = decoded
	}
	return result, nil
}

// ListLogs fetches every log record the service exposes.
func (c *Client) ListLogs(ctx context.Context) ([]core.LogRecord, error) {
	var records []core.LogRecord
	if err := c.Request(ctx, http.MethodGet, PathLogs, nil, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}
