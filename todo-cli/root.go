package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yush1006/todo/client"
	"github.com/yush1006/todo/config"
)

var (
	configPath string
	envFiles   []string
	debug      bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "todo",
	Short: "Ordered todo list synced in real time",
	Long: `todo talks to a todo-api server. Credentials come from the environment,
a .env file or a config file:

  TODO_API_URL     server base URL
  TODO_API_KEY     API key sent as X-Api-Key
  TODO_PROJECT_ID  project identifier
  TODO_TOKEN       ID token used to sign in`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			log.SetLevel(log.DebugLevel)
		}
		return config.LoadDotEnv(envFiles...)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil, ".env files to load (default .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "time to wait for the first snapshot")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(moveCmd)
}

func openApp() (*client.App, error) {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return nil, err
	}
	return client.Open(cfg, client.Options{Logger: log.StandardLogger()}), nil
}

// session opens the app, signs in and waits for the first snapshot. The
// returned context is cancelled on SIGINT or SIGTERM.
func session(cmd *cobra.Command) (context.Context, *client.Engine, func(), error) {
	app, err := openApp()
	if err != nil {
		return nil, nil, nil, err
	}
	if app.State() == client.StateNotConfigured {
		app.Close()
		return nil, nil, nil, fmt.Errorf("%s: missing %s", client.MsgNotConfigured, strings.Join(app.Missing(), ", "))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	cleanup := func() {
		app.Close()
		stop()
	}
	if err := app.SignIn(ctx); err != nil {
		cleanup()
		return nil, nil, nil, errors.New(client.AuthMessage(err))
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := app.Engine().AwaitSnapshot(waitCtx); err != nil {
		cleanup()
		if n := app.Notice(); n != nil {
			return nil, nil, nil, n
		}
		return nil, nil, nil, fmt.Errorf("waiting for tasks: %w", err)
	}
	return ctx, app.Engine(), cleanup, nil
}
