package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WithoutDSN(t *testing.T) {
	flush, err := Init(Config{})
	require.NoError(t, err)
	assert.NotPanics(t, flush)
}

func TestStartSpan_NestsUnderParent(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "IngestService.ingestFile", SpanAttributes{FileName: "a.pdf", Namespace: "docs"})
	defer root.End()

	_, child := StartSpan(ctx, "IngestService.embed", SpanAttributes{Operation: "embed"})
	defer child.End()

	require.NotNil(t, root.inner)
	require.NotNil(t, child.inner)
	assert.Equal(t, root.inner.TraceID, child.inner.TraceID)
	assert.Equal(t, root.inner.SpanID, child.inner.ParentSpanID)
	assert.Equal(t, "a.pdf", root.inner.Tags["file_name"])
	assert.Equal(t, "docs", root.inner.Tags["namespace"])
}

func TestStartTransaction_TagsDocument(t *testing.T) {
	_, span := StartTransaction(context.Background(), "ReingestWorker.processJob", "job.reingest", SpanAttributes{DocumentID: "doc-1"})
	defer span.End()

	assert.Equal(t, "job.reingest", span.inner.Op)
	assert.Equal(t, "doc-1", span.inner.Tags["document_id"])
}

func TestSpan_SetError(t *testing.T) {
	_, span := StartSpan(context.Background(), "QueryService.Answer", SpanAttributes{})
	span.SetError(errors.New("upstream 500"))
	assert.Equal(t, sentry.SpanStatusInternalError, span.inner.Status)

	var zero Span
	assert.NotPanics(t, func() {
		zero.SetError(errors.New("ignored"))
		zero.End()
	})
}

func TestSampler(t *testing.T) {
	sample := sampler(0.25)

	assert.Equal(t, 0.0, sample(sentry.SamplingContext{Span: &sentry.Span{Name: "GET /health"}}))
	assert.Equal(t, 0.0, sample(sentry.SamplingContext{Span: &sentry.Span{Name: "GET /"}}))
	assert.Equal(t, 0.25, sample(sentry.SamplingContext{Span: &sentry.Span{Name: "POST /query"}}))

	child := &sentry.Span{Name: "POST /upload", ParentSpanID: sentry.SpanID{1}, Sampled: sentry.SampledTrue}
	assert.Equal(t, 1.0, sample(sentry.SamplingContext{Span: child}))
}
