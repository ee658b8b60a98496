package logger

import (
	"errors"
	"testing"

	"github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func TestNotifyOnPanic(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := L()
	Set(zap.New(core))
	t.Cleanup(func() { Set(prev) })

	fs := &fakeSender{}
	InitNotifier(fs, 77)

	func() {
		defer NotifyOnPanic("handler")
		panic(errors.New("boom"))
	}()

	require.Len(t, fs.sent, 1)
	assert.Equal(t, int64(77), fs.sent[0].ChatID)
	assert.Equal(t, "[ALERT] Panic in handler: boom", fs.sent[0].Text)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestToString(t *testing.T) {
	assert.Equal(t, "x", toString("x"))
	assert.Equal(t, "e", toString(errors.New("e")))
	assert.Equal(t, "42", toString(42))
}

func TestInitLevel(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })

	require.NoError(t, Init("debug"))
	assert.True(t, L().Core().Enabled(zapcore.DebugLevel))
	assert.Error(t, Init("nope"))
}
