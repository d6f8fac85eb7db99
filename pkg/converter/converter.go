// Package converter drives conversion, formatting and minification requests
// and holds the converter panel's state.
package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modoterra/sqlshift/pkg/core"
	"github.com/modoterra/sqlshift/pkg/notify"
)

var (
	// ErrEmptyQuery is returned before any network call for blank input.
	ErrEmptyQuery = errors.New("SQL query is required")
	// ErrDialectDisabled is returned for dialects not enabled in configuration.
	ErrDialectDisabled = errors.New("dialect is not available")
)

// API is the subset of the service client the converter needs.
type API interface {
	ConvertQuery(ctx context.Context, query string) (core.ConversionResult, error)
	FormatQuery(ctx context.Context, query string) (core.FormatResult, error)
	MinifyQuery(ctx context.Context, query string) (core.FormatResult, error)
}

// Service wraps API calls with validation and notices.
type Service struct {
	api         API
	notifier    notify.Notifier
	logger      *slog.Logger
	minDuration time.Duration
	enabled     map[core.Dialect]bool
}

// Options configures a Service.
type Options struct {
	Notifier    notify.Notifier
	Logger      *slog.Logger
	MinDuration time.Duration
	Enabled     []core.Dialect
}

// NewService creates a converter service. With no enabled dialects every dialect is allowed.
func NewService(api API, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	enabled := make(map[core.Dialect]bool)
	for _, d := range opts.Enabled {
		enabled[d] = true
	}
	if len(enabled) == 0 {
		for _, d := range core.Dialects {
			enabled[d] = true
		}
	}
	return &Service{
		api:         api,
		notifier:    opts.Notifier,
		logger:      logger,
		minDuration: opts.MinDuration,
		enabled:     enabled,
	}
}

// Enabled reports whether d can be selected.
func (s *Service) Enabled(d core.Dialect) bool {
	return s.enabled[d]
}

// Validate checks the input without touching the network.
func (s *Service) Validate(d core.Dialect, query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	if !s.enabled[d] {
		return fmt.Errorf("%w: %s", ErrDialectDisabled, d.Label())
	}
	return nil
}

// Convert validates, then submits query. The call and a minimum-duration timer
// run concurrently and the slower of the two decides when Convert returns.
// A notice is raised for every outcome.
func (s *Service) Convert(ctx context.Context, d core.Dialect, query string) (core.ConversionResult, error) {
	if err := s.Validate(d, query); err != nil {
		return core.ConversionResult{}, err
	}

	var result core.ConversionResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result, err = s.api.ConvertQuery(gctx, query)
		return err
	})
	g.Go(func() error {
		if s.minDuration <= 0 {
			return nil
		}
		t := time.NewTimer(s.minDuration)
		defer t.Stop()
		select {
		case <-t.C:
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn("convert failed", "dialect", d, "err", err)
		notify.Error(s.notifier, "Error connecting to the API",
			"Please try again or contact support if the problem persists.")
		return core.ConversionResult{}, err
	}

	if !result.Success {
		if len(result.Warnings) == 0 {
			result.Warnings = []string{"Conversion failed"}
		}
		notify.Error(s.notifier, "Conversion failed", strings.Join(result.Warnings, " "))
		return result, nil
	}

	s.logger.Info("query converted", "dialect", d, "warnings", len(result.Warnings))
	notify.Success(s.notifier, "Query converted successfully")
	return result, nil
}

// Format pretty-prints query. Empty input is a no-op.
func (s *Service) Format(ctx context.Context, query string) (string, bool) {
	return s.reshape(ctx, query, s.api.FormatQuery, "SQL query formatted", "Failed to format SQL", "formatting")
}

// Minify compacts query. Empty input is a no-op.
func (s *Service) Minify(ctx context.Context, query string) (string, bool) {
	return s.reshape(ctx, query, s.api.MinifyQuery, "SQL query minified", "Failed to minify SQL", "minification")
}

// FormatOutput pretty-prints a converted query.
func (s *Service) FormatOutput(ctx context.Context, query string) (string, bool) {
	return s.reshape(ctx, query, s.api.FormatQuery, "Output query formatted", "Failed to format output", "formatting")
}

// MinifyOutput compacts a converted query.
func (s *Service) MinifyOutput(ctx context.Context, query string) (string, bool) {
	return s.reshape(ctx, query, s.api.MinifyQuery, "Output query minified", "Failed to minify output", "minification")
}

func (s *Service) reshape(ctx context.Context, query string,
	call func(context.Context, string) (core.FormatResult, error),
	okTitle, failTitle, what string) (string, bool) {
	if strings.TrimSpace(query) == "" {
		return query, false
	}

	res, err := call(ctx, query)
	if err != nil {
		s.logger.Warn(what+" failed", "err", err)
		notify.Error(s.notifier, "Error connecting to the "+what+" API", "")
		return query, false
	}
	if !res.Success {
		detail := strings.Join(res.Warnings, " ")
		if detail == "" {
			detail = "Unknown error occurred"
		}
		notify.Error(s.notifier, failTitle, detail)
		return query, false
	}

	notify.Success(s.notifier, okTitle)
	return res.FormattedQuery, true
}
