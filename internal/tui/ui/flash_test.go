package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/matchchat/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlashExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := NewFlashModel(clock)
	assert.Nil(t, f.Get())

	f.Info("Message sent")
	require.NotNil(t, f.Get())
	assert.Equal(t, FlashInfo, f.Get().Level)

	clock.Advance(5 * time.Second)
	assert.Nil(t, f.Get())
}

func TestFlashErrLevels(t *testing.T) {
	f := NewFlashModel(clockwork.NewFakeClock())

	f.Err(chat.ErrAttachmentTooLarge)
	assert.Equal(t, FlashWarn, f.Get().Level)

	f.Err(chat.E(chat.KindNetwork, "send message", errors.New("connection refused")))
	assert.Equal(t, FlashErr, f.Get().Level)
	assert.Equal(t, "Offline: connection refused", f.Get().Text)

	f.Err(chat.E(chat.KindAuth, "list conversations", errors.New("401")))
	assert.Equal(t, "Signed out: check api.token", f.Get().Text)
}
