package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestSpanContextRoundTrip(t *testing.T) {
	orig := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})

	parsed, err := ParseSpanContext(BuildSpanContext(orig))
	require.NoError(t, err)
	assert.Equal(t, orig.TraceID(), parsed.TraceID())
	assert.Equal(t, orig.SpanID(), parsed.SpanID())
	assert.True(t, parsed.IsSampled())
}

func TestWithRemoteIgnoresEmptySpanContext(t *testing.T) {
	ctx := context.Background()
	sc := FromContext(ctx)

	out := WithRemote(ctx, sc)
	assert.False(t, trace.SpanContextFromContext(out).IsValid())
}

func TestWithRemoteSetsParent(t *testing.T) {
	orig := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{9},
		SpanID:  trace.SpanID{7},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), orig)

	out := WithRemote(context.Background(), FromContext(ctx))
	got := trace.SpanContextFromContext(out)
	assert.True(t, got.IsRemote())
	assert.Equal(t, orig.TraceID(), got.TraceID())
}
