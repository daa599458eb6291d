package testutil

import (
	"log/slog"
	"testing"
)

func TestLogCaptureRecordsAttrs(t *testing.T) {
	t.Parallel()
	lc, logger := NewLogCapture()

	logger.With("component", "sms").Warn("twilio_sms_timeout", "to", "*******0123", "timeout_ms", 5000)
	logger.WithGroup("req").Info("done", "status", 200)

	rec := lc.RequireEvent(t, "twilio_sms_timeout")
	Equal(t, slog.LevelWarn, rec.Level)
	Equal(t, "sms", rec.Attr("component"))
	Equal(t, "*******0123", rec.Attr("to"))
	Equal(t, "5000", rec.Attr("timeout_ms"))

	done, ok := lc.Find("done")
	True(t, ok)
	Equal(t, "200", done.Attr("req.status"))
	Equal(t, "", done.Attr("missing"))
}

func TestLogCaptureSharedAcrossDerivedLoggers(t *testing.T) {
	t.Parallel()
	lc, logger := NewLogCapture()
	child := logger.With("a", 1)

	logger.Info("e")
	child.Info("e")

	Equal(t, 2, lc.Count("e"))
	SliceLen(t, lc.Records(), 2)
	_, ok := lc.Find("nope")
	False(t, ok)
}
