package cli

import (
	"github.com/matheus3301/matchchat/internal/app"
	"github.com/matheus3301/matchchat/internal/tui"
	"github.com/spf13/cobra"
)

func newTUICmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := o.open(cmd.Context(), app.Params{Exclusive: true, Quiet: true})
			if err != nil {
				return err
			}
			defer rt.close()

			return tui.NewApp(rt.Engine, rt.Profile, rt.Config.User.ID, rt.Logger).Run()
		},
	}
}
