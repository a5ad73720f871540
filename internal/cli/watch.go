package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/matchchat/internal/app"
	"github.com/matheus3301/matchchat/internal/bus"
	"github.com/matheus3301/matchchat/internal/status"
	"github.com/spf13/cobra"
)

func newWatchCmd(o *rootOptions) *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the conversation list and print sync events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := o.open(ctx, app.Params{Exclusive: true, WatchList: true})
			if err != nil {
				return err
			}
			defer rt.close()

			events, unsubscribe := rt.Engine.Subscribe("", 64)
			defer unsubscribe()

			if threadID != "" {
				go func() {
					if err := rt.Engine.FocusThread(ctx, threadID); err != nil {
						_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "thread %s: %v\n", threadID, err)
					}
				}()
				defer rt.Engine.BlurThread(threadID)
			}

			return watchEvents(ctx, cmd.OutOrStdout(), events, o.json)
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "also poll this conversation and acknowledge its messages")
	return cmd
}

// watchEvents prints events until ctx ends.
func watchEvents(ctx context.Context, w io.Writer, events <-chan bus.Event, asJSON bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-events:
			if asJSON {
				if err := outputJSON(w, evt); err != nil {
					return err
				}
				continue
			}
			_, _ = fmt.Fprintf(w, "%s  %-24s %s\n", evt.Timestamp.Local().Format(time.TimeOnly), evt.Kind, describeEvent(evt))
		}
	}
}

func describeEvent(evt bus.Event) string {
	switch p := evt.Payload.(type) {
	case bus.MessageEvent:
		switch {
		case p.Error != "":
			return fmt.Sprintf("%s %s: %s", p.ConversationID, p.TempID, p.Error)
		case p.MessageID != "":
			return fmt.Sprintf("%s %s -> %s", p.ConversationID, p.TempID, p.MessageID)
		}
		return fmt.Sprintf("%s %s", p.ConversationID, p.TempID)
	case bus.ReceiptEvent:
		return fmt.Sprintf("%s %d read", p.ConversationID, len(p.MessageIDs))
	case status.StatusChange:
		return fmt.Sprintf("%s -> %s", p.From, p.To)
	case string:
		return p
	case nil:
		return ""
	}
	return fmt.Sprint(evt.Payload)
}
