// Package telemetry reports ingestion and query traces and errors to Sentry.
package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	serverName   = "docqad"
	flushTimeout = 5 * time.Second
)

// untracedTransactions are health checks that would otherwise dominate the trace volume.
var untracedTransactions = map[string]bool{
	"GET /":       true,
	"GET /health": true,
}

type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init configures the global Sentry client and returns a flush function.
// Without a DSN nothing is reported and both Init and flush are no-ops.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serverName,
		TracesSampler:    sampler(cfg.TracesSampleRate),
	})
	if err != nil {
		log.Printf("sentry: init failed, continuing without reporting: %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: reporting to %s (sample rate %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if untracedTransactions[ctx.Span.Name] {
			return 0
		}
		var root sentry.SpanID
		if ctx.Span.ParentSpanID != root {
			if ctx.Span.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

// SpanAttributes identify the document or index a span works on.
type SpanAttributes struct {
	FileName   string
	Namespace  string
	DocumentID string
	Operation  string
}

func (a SpanAttributes) apply(span *sentry.Span) {
	if a.FileName != "" {
		span.SetTag("file_name", a.FileName)
	}
	if a.Namespace != "" {
		span.SetTag("namespace", a.Namespace)
	}
	if a.DocumentID != "" {
		span.SetTag("document_id", a.DocumentID)
	}
	if a.Operation != "" {
		span.SetData("operation", a.Operation)
	}
}

// Span is a pipeline step. The zero value is safe to use.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError fails the span and reports err on the span's hub.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	CaptureError(s.inner.Context(), err)
}

// StartSpan opens a child of the span in ctx, or a new transaction when ctx
// carries none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name, sentry.WithDescription(name))
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}

// StartTransaction opens a root span for work that starts outside an HTTP
// request, such as a background re-ingestion.
func StartTransaction(ctx context.Context, name, op string, attrs SpanAttributes) (context.Context, *Span) {
	span := sentry.StartTransaction(ctx, name, sentry.WithOpName(op))
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}

func hubFor(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

func CaptureError(ctx context.Context, err error) {
	hubFor(ctx).CaptureException(err)
}

func CaptureMessage(ctx context.Context, message string) {
	hubFor(ctx).CaptureMessage(message)
}

// AddBreadcrumb records an info-level step on the current scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	hubFor(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}, nil)
}
