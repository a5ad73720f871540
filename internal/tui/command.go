package tui

import "strings"

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Composer commands.
const (
	ComposeText   = ""
	ComposeAttach = "attach"
	ComposeRetry  = "retry"
)

// ParseComposer interprets a composer line. "/attach <path>" and "/retry [temp-id]"
// are commands; anything else, including "//text" for a literal leading slash,
// is message text returned with Name ComposeText.
func ParseComposer(input string) Command {
	if strings.HasPrefix(input, "//") {
		return Command{Args: input[1:]}
	}
	if !strings.HasPrefix(input, "/") {
		return Command{Args: input}
	}
	cmd := ParseCommand(input[1:])
	switch cmd.Name {
	case ComposeAttach, ComposeRetry:
		return cmd
	}
	return Command{Args: input}
}
