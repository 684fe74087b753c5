// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Package testcontext provides contexts for tests.
package testcontext

import (
	"context"
	"testing"
	"time"

	"zombiezen.com/go/log/testlog"
)

// New returns a context that sends log messages to the test's log,
// obeys the test's deadline if present,
// and is canceled when the test finishes.
func New(tb testing.TB) context.Context {
	ctx := tb.Context()
	if d, ok := deadline(tb); ok {
		// Leave a little time for cleanup after a timeout.
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, d.Add(-time.Second))
		tb.Cleanup(cancel)
	}
	return testlog.WithTB(ctx, tb)
}

func deadline(x any) (deadline time.Time, ok bool) {
	d, ok := x.(interface {
		Deadline() (deadline time.Time, ok bool)
	})
	if !ok {
		return time.Time{}, false
	}
	return d.Deadline()
}
