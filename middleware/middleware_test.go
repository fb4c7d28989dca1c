package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/parcelworks/courier/job"
	"github.com/parcelworks/courier/middleware"
)

func testJob() *job.Job {
	return job.New("sendEmail", []byte(`{}`), 3)
}

func TestChain_Order(t *testing.T) {
	var order []string

	tag := func(name string) middleware.Middleware {
		return func(ctx context.Context, _ *job.Job, next middleware.Handler) error {
			order = append(order, name+" in")
			err := next(ctx)
			order = append(order, name+" out")
			return err
		}
	}

	chain := middleware.Chain(tag("outer"), tag("inner"))
	err := chain(context.Background(), testJob(), func(context.Context) error {
		order = append(order, "handler")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"outer in", "inner in", "handler", "inner out", "outer out"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	called := false
	err := middleware.Chain()(context.Background(), testJob(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler not called through empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	sentinel := errors.New("boom")
	chain := middleware.Chain(middleware.Logging(slog.Default()))

	err := chain(context.Background(), testJob(), func(context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("error = %v, want %v", err, sentinel)
	}
}

func TestRecover_ConvertsPanic(t *testing.T) {
	chain := middleware.Chain(middleware.Recover(slog.Default()))

	err := chain(context.Background(), testJob(), func(context.Context) error {
		panic("handler exploded")
	})
	if err == nil {
		t.Fatal("panic not converted to error")
	}
}

func TestRecover_PassThrough(t *testing.T) {
	chain := middleware.Chain(middleware.Recover(slog.Default()))

	if err := chain(context.Background(), testJob(), func(context.Context) error {
		return nil
	}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
