package certvalidator

import (
	"context"

	otlp_util "github.com/bluexlab/otlp-util-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	validateCount = otlp_util.NewInt64Counter("pkixpath.validate.count", metric.WithDescription("The total number of certification paths validated"))
	buildCount    = otlp_util.NewInt64Counter("pkixpath.build.count", metric.WithDescription("The total number of path building attempts"))
	crlFetchCount = otlp_util.NewInt64Counter("pkixpath.crl.fetch.count", metric.WithDescription("The total number of CRL lookups against CRL sources"))
)

func outcomeOf(err error) string {
	if err == nil {
		return "valid"
	}
	if k := KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}

// finishSpan records the outcome of an operation on its span and counter.
func finishSpan(ctx context.Context, span trace.Span, counter metric.Int64Counter, err error) {
	outcome := outcomeOf(err)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	span.End()
}
