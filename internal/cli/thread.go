package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/matheus3301/matchchat/internal/app"
	"github.com/matheus3301/matchchat/internal/chat"
	"github.com/matheus3301/matchchat/internal/status"
	"github.com/spf13/cobra"
)

func newThreadCmd(o *rootOptions) *cobra.Command {
	var read bool
	cmd := &cobra.Command{
		Use:   "thread <conversation>",
		Short: "Refresh and print a conversation thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			rt, err := o.open(cmd.Context(), app.Params{})
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.Engine.RefreshThread(cmd.Context(), id); err != nil {
				return err
			}
			if read {
				if _, err := rt.Engine.ObserveReads(cmd.Context(), id); err != nil {
					return err
				}
			}
			msgs := rt.Engine.Thread(id)

			out := cmd.OutOrStdout()
			if o.json {
				return outputJSON(out, msgs)
			}
			if rt.Engine.Status() == status.Stale {
				synced, ok := rt.Engine.LastSynced()
				printStale(cmd.ErrOrStderr(), synced, ok)
			}
			printThread(out, msgs, rt.Config.User.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&read, "read", false, "mark received messages as read")
	return cmd
}

func printThread(w io.Writer, msgs []chat.Message, selfID string) {
	if len(msgs) == 0 {
		_, _ = fmt.Fprintln(w, "No messages yet.")
		return
	}
	for _, m := range msgs {
		who := "Them"
		if m.SenderID == selfID {
			who = "You"
		}
		_, _ = fmt.Fprintf(w, "%s  %-4s  %s%s\n", m.CreatedAt.Local().Format(time.DateTime), who, body(m), suffix(m))
	}
}

func body(m chat.Message) string {
	switch {
	case m.Content != "":
		return m.Content
	case m.Attachment != nil:
		return "[attachment " + m.Attachment.Name + "]"
	case m.Upload != nil:
		return "[attachment " + m.Upload.Name + "]"
	}
	return ""
}

func suffix(m chat.Message) string {
	switch m.State {
	case chat.Pending:
		return "  (sending, " + m.ID + ")"
	case chat.Failed:
		return fmt.Sprintf("  (not sent: %s, retry with 'matchchat retry %s %s')", m.FailedWith, m.ConversationID, m.ID)
	}
	return ""
}
