package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestQueryTracer_ReportsOperationAndError(t *testing.T) {
	type report struct {
		operation string
		err       error
	}
	var reports []report

	tracer := &queryTracer{observe: func(operation string, _ time.Duration, err error) {
		reports = append(reports, report{operation, err})
	}}

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{
		SQL: "INSERT INTO rewards (epoch) VALUES ($1)",
	})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	queryErr := errors.New("relation does not exist")
	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{
		SQL: "\n\t\tSELECT epoch FROM rewards",
	})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: queryErr})

	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].operation != "insert" || reports[0].err != nil {
		t.Errorf("first report = %+v", reports[0])
	}
	if reports[1].operation != "select" || reports[1].err != queryErr {
		t.Errorf("second report = %+v", reports[1])
	}

	// An end without a matching start reports nothing.
	tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	if len(reports) != 2 {
		t.Errorf("unmatched end produced a report: %+v", reports)
	}
}

func TestQueryOperation(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT 1", "select"},
		{"  update cursors set slot = $1", "update"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		if got := queryOperation(tt.sql); got != tt.want {
			t.Errorf("queryOperation(%q) = %q, want %q", tt.sql, got, tt.want)
		}
	}
}
