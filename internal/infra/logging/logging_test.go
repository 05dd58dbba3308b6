// File: internal/infra/logging/logging_test.go
package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWith(t *testing.T) {
	t.Run("attaches ids carried in context", func(t *testing.T) {
		var buf bytes.Buffer
		base := zerolog.New(&buf)

		ctx := WithTraceID(context.Background(), "trace-1")
		ctx = WithUserID(ctx, "user-1")
		ctx = WithOrderID(ctx, "order-1")
		With(ctx, &base).Info().Msg("created")

		out := buf.String()
		for _, want := range []string{`"trace_id":"trace-1"`, `"user_id":"user-1"`, `"order_id":"order-1"`} {
			if !strings.Contains(out, want) {
				t.Errorf("log line missing %s: %s", want, out)
			}
		}
	})

	t.Run("bare context adds nothing", func(t *testing.T) {
		var buf bytes.Buffer
		base := zerolog.New(&buf)

		With(context.Background(), &base).Info().Msg("created")

		if out := buf.String(); strings.Contains(out, "trace_id") {
			t.Errorf("unexpected trace_id in %s", out)
		}
	})
}

func TestTraceDuration(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf).Level(zerolog.TraceLevel)

	finish := TraceDuration(&base, "ChargeUC.Create")
	finish()

	out := buf.String()
	if !strings.Contains(out, `"method":"ChargeUC.Create"`) {
		t.Fatalf("missing method field: %s", out)
	}
	if !strings.Contains(out, "start") || !strings.Contains(out, "finish") {
		t.Errorf("expected start and finish events: %s", out)
	}
	if !strings.Contains(out, `"duration"`) {
		t.Errorf("finish event missing duration: %s", out)
	}
}
