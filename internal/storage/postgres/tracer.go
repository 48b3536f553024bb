package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// QueryObserver receives the operation keyword, wall-clock duration, and
// outcome of every query on an instrumented pool.
type QueryObserver func(operation string, d time.Duration, err error)

// queryTracer implements pgx.QueryTracer, timing each query from start to end.
type queryTracer struct {
	observe QueryObserver
}

type traceCtxKey struct{}

type traceState struct {
	start     time.Time
	operation string
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceCtxKey{}, traceState{
		start:     time.Now(),
		operation: queryOperation(data.SQL),
	})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	state, ok := ctx.Value(traceCtxKey{}).(traceState)
	if !ok {
		return
	}
	t.observe(state.operation, time.Since(state.start), data.Err)
}

// queryOperation reduces a statement to its leading keyword, lowercased.
func queryOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
