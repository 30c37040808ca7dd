package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/rickgao/podsync/internal/app"
	"github.com/rickgao/podsync/internal/config"
	"github.com/rickgao/podsync/internal/model"
)

// tail connects like run and prints every dispatch to stdout.
func newTailCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Connect to configured pods and print gateway dispatches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAndValidate(configPath)
			if err != nil {
				return err
			}
			cfg.Archive.Enabled = false

			logger := newLogger(cfg.Log)
			out := cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := app.New(cfg, logger, app.WithObserver(func(pod, event string, payload json.RawMessage) {
				printDispatch(out, pod, event, payload, verbose)
			}))
			if err := a.Start(ctx); err != nil {
				return err
			}
			logger.Info("streaming started - press Ctrl+C to stop")

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return a.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to config file")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "print full dispatch JSON")
	return cmd
}

func printDispatch(w io.Writer, pod, event string, payload json.RawMessage, verbose bool) {
	if verbose {
		fmt.Fprintf(w, "[%s] pod=%s %s\n", event, pod, payload)
		return
	}

	d := gjson.ParseBytes(payload)
	switch event {
	case model.EventReady:
		fmt.Fprintf(w, "[READY] pod=%s user=%s communities=%d\n",
			pod, d.Get("user.id").String(), d.Get("communities.#").Int())
	case model.EventMessageCreate, model.EventMessageUpdate:
		fmt.Fprintf(w, "[%s] pod=%s channel=%s id=%s author=%s content=%q\n",
			event, pod, d.Get("channel_id").String(), d.Get("id").String(),
			d.Get("author.id").String(), d.Get("content").String())
	case model.EventTypingStart:
		fmt.Fprintf(w, "[TYPING_START] pod=%s channel=%s user=%s\n",
			pod, d.Get("channel_id").String(), d.Get("user_id").String())
	default:
		fmt.Fprintf(w, "[%s] pod=%s channel=%s id=%s\n",
			event, pod, d.Get("channel_id").String(), d.Get("id").String())
	}
}
