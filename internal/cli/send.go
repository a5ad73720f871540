package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/matheus3301/matchchat/internal/app"
	"github.com/matheus3301/matchchat/internal/attachment"
	"github.com/matheus3301/matchchat/internal/chat"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSendCmd(o *rootOptions) *cobra.Command {
	var attach string
	cmd := &cobra.Command{
		Use:   "send <conversation> [text]",
		Short: "Send a text message or, with --attach, a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 2 {
				text = args[1]
			}
			if text != "" && attach != "" {
				return chat.E(chat.KindValidation, "send", chat.ErrContentAndUpload)
			}

			rt, err := o.open(cmd.Context(), app.Params{})
			if err != nil {
				return err
			}
			defer rt.close()

			var att *chat.PendingAttachment
			if attach != "" {
				staged, ok, err := rt.Engine.Stage(cmd.Context(), attachment.PathPicker{Path: attach})
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("no file picked")
				}
				att = &staged
			}

			// Load the thread first so the cached copy stays complete. Sending
			// still works offline.
			if err := rt.Engine.RefreshThread(cmd.Context(), args[0]); err != nil {
				rt.Logger.Debug("thread refresh before send failed", zap.Error(err))
			}
			m, err := rt.Engine.Send(cmd.Context(), args[0], text, att)
			return reportDelivery(cmd, o, m, err)
		},
	}
	cmd.Flags().StringVar(&attach, "attach", "", "path of a file to send instead of text")
	return cmd
}

func newRetryCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <conversation> <temp-id>",
		Short: "Re-send a message that failed to send",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversationID, tempID := args[0], args[1]
			rt, err := o.open(cmd.Context(), app.Params{})
			if err != nil {
				return err
			}
			defer rt.close()

			if !slices.ContainsFunc(rt.Engine.Thread(conversationID), func(m chat.Message) bool { return m.ID == tempID }) {
				return fmt.Errorf("retry %s in %s: %w", tempID, conversationID, chat.ErrUnknownMessage)
			}
			m, err := rt.Engine.Retry(cmd.Context(), tempID)
			return reportDelivery(cmd, o, m, err)
		},
	}
}

// reportDelivery prints the outcome of a send or retry. A failed message stays in
// the outbox for a later retry.
func reportDelivery(cmd *cobra.Command, o *rootOptions, m chat.Message, err error) error {
	out := cmd.OutOrStdout()
	if err != nil {
		if m.State == chat.Failed || m.State == chat.Pending {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "message %s kept; retry with 'matchchat retry %s %s'\n", m.ID, m.ConversationID, m.ID)
		}
		return err
	}
	if o.json {
		return outputJSON(out, m)
	}
	_, _ = fmt.Fprintf(out, "sent %s\n", m.ID)
	return nil
}
