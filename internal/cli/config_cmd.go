package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/matheus3301/matchchat/internal/config"
	"github.com/matheus3301/matchchat/internal/session"
	"github.com/spf13/cobra"
)

func newConfigCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(newConfigInitCmd(o))
	cmd.AddCommand(newConfigPathCmd(o))

	return cmd
}

func newConfigInitCmd(o *rootOptions) *cobra.Command {
	var (
		userID string
		token  string
		url    string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := o.configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			cfg := config.Default()
			cfg.User.ID = userID
			cfg.API.Token = token
			if url != "" {
				cfg.API.BaseURL = url
			}
			if o.profile != "" {
				if err := session.CheckName(o.profile); err != nil {
					return err
				}
				cfg.DefaultProfile = o.profile
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "your user id on the service")
	cmd.Flags().StringVar(&token, "token", "", "API bearer token (or set "+config.EnvAPIToken+")")
	cmd.Flags().StringVar(&url, "url", "", "API base URL")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newConfigPathCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), o.configPath())
		},
	}
}
