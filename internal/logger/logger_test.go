package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	Init()
	assert.NotNil(t, log)
}

func TestInfo(t *testing.T) {
	var buf bytes.Buffer
	log = slog.New(slog.NewJSONHandler(&buf, nil))

	Info("member checked in", "user_id", 42)

	output := buf.String()
	assert.Contains(t, output, "member checked in")
	assert.Contains(t, output, "user_id")
}

func TestErrorf(t *testing.T) {
	var buf bytes.Buffer
	log = slog.New(slog.NewJSONHandler(&buf, nil))

	Errorf("debit failed for grant %d", 7)

	assert.Contains(t, buf.String(), "debit failed for grant 7")
}

func TestDebug(t *testing.T) {
	var buf bytes.Buffer
	log = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	Debug("waitlist skip", "booking_id", 3)

	assert.Contains(t, buf.String(), "waitlist skip")
}
