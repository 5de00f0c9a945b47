package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appctx "docledger/internal/core/context"
)

func TestFromContext_AddsTraceAndActor(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := &Logger{zap.New(core).Sugar()}

	ctx := WithLogger(context.Background(), base)
	ctx = appctx.WithTrace(ctx, &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	ctx = appctx.WithActor(ctx, &appctx.Actor{ID: "clerk-7"})

	Info(ctx, "document finalized", "number", "INV 01001")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "document finalized", entries[0].Message)
		assert.Equal(t, "t-1", fields["trace_id"])
		assert.Equal(t, "r-1", fields["request_id"])
		assert.Equal(t, "clerk-7", fields["actor_id"])
		assert.Equal(t, "INV 01001", fields["number"])
	}
}

func TestWithComponent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := (&Logger{zap.New(core).Sugar()}).WithComponent("ledger")

	l.Infow("payment applied")

	assert.Equal(t, "ledger", logs.All()[0].ContextMap()["component"])
}

func TestWithContext_OriginAndBareContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := &Logger{zap.New(core).Sugar()}

	assert.Same(t, base, base.WithContext(context.Background()))

	ctx := appctx.StartTrace(context.Background(), appctx.OriginOutbox)
	base.WithContext(ctx).Infow("outbox drained")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, appctx.OriginOutbox, fields["origin"])
	assert.NotEmpty(t, fields["trace_id"])
}
