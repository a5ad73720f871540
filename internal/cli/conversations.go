package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matheus3301/matchchat/internal/app"
	"github.com/matheus3301/matchchat/internal/chat"
	"github.com/matheus3301/matchchat/internal/status"
	"github.com/spf13/cobra"
)

func newConversationsCmd(o *rootOptions) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "Refresh and list conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := o.open(cmd.Context(), app.Params{})
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.Engine.RefreshList(cmd.Context(), false); err != nil {
				return err
			}
			convs := rt.Engine.Filter(filter)

			out := cmd.OutOrStdout()
			if o.json {
				return outputJSON(out, convs)
			}
			if rt.Engine.Status() == status.Stale {
				synced, ok := rt.Engine.LastSynced()
				printStale(cmd.ErrOrStderr(), synced, ok)
			}
			printConversations(out, convs, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "only show conversations matching a name or message text")
	return cmd
}

func printConversations(w io.Writer, convs []chat.Conversation, now time.Time) {
	if len(convs) == 0 {
		_, _ = fmt.Fprintln(w, "No conversations yet.")
		return
	}
	for _, c := range convs {
		unread := ""
		if c.UnreadCount > 0 {
			unread = fmt.Sprintf("(%d)", c.UnreadCount)
		}
		preview, when := "", ""
		if c.LastMessage != nil {
			preview = oneLine(c.LastMessage.Content, 40)
			when = age(c.LastMessage.CreatedAt, now)
		}
		_, _ = fmt.Fprintf(w, "%-12s %-20s %-5s %-42s %s\n", c.ID, participantName(c), unread, preview, when)
	}
}

func printStale(w io.Writer, synced time.Time, ok bool) {
	if !ok {
		_, _ = fmt.Fprintln(w, "warning: offline, showing cached data")
		return
	}
	_, _ = fmt.Fprintf(w, "warning: offline, showing data from %s\n", synced.Local().Format(time.DateTime))
}

func participantName(c chat.Conversation) string {
	if c.Other.DisplayName != "" {
		return c.Other.DisplayName
	}
	return c.Other.ID
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}

func age(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return t.Local().Format("Jan 2")
}
