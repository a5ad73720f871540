package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrandFollowsState(t *testing.T) {
	theme := DefaultTheme()
	b := NewBrand(theme)

	assert.Contains(t, b.markup("READY"), "live")
	assert.Contains(t, b.markup("READY"), colorName(theme.CounterColor))
	assert.Contains(t, b.markup("UNAVAILABLE"), "offline")
	assert.Contains(t, b.markup("UNAVAILABLE"), colorName(theme.FlashErrColor))
	assert.Contains(t, b.markup("AUTH_REQUIRED"), "signed out")
	assert.Contains(t, b.markup(""), "connecting")

	b.SetState("STALE")
	assert.Contains(t, b.GetText(true), "cached")
	assert.Contains(t, b.GetText(true), "matchchat")
}
