// Package cli implements the matchchat command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/matheus3301/matchchat/internal/app"
	"github.com/matheus3301/matchchat/internal/config"
	"github.com/matheus3301/matchchat/internal/session"
	intsync "github.com/matheus3301/matchchat/internal/sync"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const stopTimeout = 15 * time.Second

type rootOptions struct {
	profile string
	cfgFile string
	json    bool
}

func (o *rootOptions) configPath() string {
	if o.cfgFile != "" {
		return o.cfgFile
	}
	return session.ConfigPath()
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "matchchat",
		Short:         "matchchat keeps your match conversations in sync from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&o.profile, "profile", "", "profile name (overrides config default)")
	cmd.PersistentFlags().StringVar(&o.cfgFile, "config", "", "config file (default ~/.matchchat/config.toml)")
	cmd.PersistentFlags().BoolVar(&o.json, "json", false, "output in JSON format")

	cmd.AddCommand(newConversationsCmd(o))
	cmd.AddCommand(newThreadCmd(o))
	cmd.AddCommand(newSendCmd(o))
	cmd.AddCommand(newRetryCmd(o))
	cmd.AddCommand(newWatchCmd(o))
	cmd.AddCommand(newTUICmd(o))
	cmd.AddCommand(newConfigCmd(o))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// profileRuntime is a started engine for one profile.
type profileRuntime struct {
	Profile string
	Engine  *intsync.Engine
	Config  *config.Config
	Logger  *zap.Logger

	app *fx.App
}

// open resolves the profile and starts the engine graph. The caller must call close.
func (o *rootOptions) open(ctx context.Context, p app.Params) (*profileRuntime, error) {
	cfg, err := config.LoadOrDefault(o.configPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	p.Profile, err = session.Resolve(o.profile, cfg)
	if err != nil {
		return nil, err
	}
	p.ConfigPath = o.configPath()

	rt := &profileRuntime{Profile: p.Profile}
	rt.app = fx.New(
		app.Module(p),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Populate(&rt.Engine, &rt.Config, &rt.Logger),
	)
	if err := rt.app.Err(); err != nil {
		return nil, err
	}
	if err := rt.app.Start(ctx); err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *profileRuntime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := rt.app.Stop(ctx); err != nil {
		rt.Logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
