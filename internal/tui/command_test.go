package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	assert.Equal(t, Command{Name: "open", Args: "Alice Smith"}, ParseCommand("  Open Alice Smith "))
	assert.Equal(t, Command{Name: "q"}, ParseCommand("q"))
}

func TestParseComposer(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"hello", Command{Args: "hello"}},
		{"/attach /tmp/cat.png", Command{Name: ComposeAttach, Args: "/tmp/cat.png"}},
		{"/retry", Command{Name: ComposeRetry}},
		{"/retry tmp-1", Command{Name: ComposeRetry, Args: "tmp-1"}},
		{"/shrug", Command{Args: "/shrug"}},
		{"//attach", Command{Args: "/attach"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseComposer(tt.in), tt.in)
	}
}
