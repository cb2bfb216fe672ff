package tracking

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/xerrors"
)

const TracerName = "go-ml.dev/pkg/tsdl"

/*
Tracing is a tracer with the function flushing its spans
*/
type Tracing struct {
	Tracer   trace.Tracer
	Shutdown func(ctx context.Context) error
}

/*
NoTracing discards spans
*/
func NoTracing() *Tracing {
	return &Tracing{
		Tracer:   noop.NewTracerProvider().Tracer(TracerName),
		Shutdown: func(context.Context) error { return nil },
	}
}

/*
StartTracing exports spans of the run as JSON to path
*/
func StartTracing(path string, r *Run) (*Tracing, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, xerrors.Errorf("create trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f), stdouttrace.WithPrettyPrint())
	if err != nil {
		f.Close()
		return nil, xerrors.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "tsdl"),
			attribute.String("tsdl.model", r.Model),
			attribute.String("tsdl.run_id", r.ID),
			attribute.Int64("tsdl.seed", r.Seed),
		)),
	)
	return &Tracing{
		Tracer: tp.Tracer(TracerName),
		Shutdown: func(ctx context.Context) error {
			err := tp.Shutdown(ctx)
			if e := f.Close(); err == nil {
				err = e
			}
			return err
		},
	}, nil
}
