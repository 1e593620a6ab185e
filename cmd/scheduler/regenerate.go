package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

var flagPurge bool

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <template-id>",
	Short: "Rebuild upcoming shifts for one template",
	Long: `regenerate expands a single active template over its configured horizon
without starting a full run. With --purge, its upcoming materialized shifts
are retracted first so the template's schedule is rebuilt from scratch.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegenerate,
}

func init() {
	regenerateCmd.Flags().BoolVar(&flagPurge, "purge", false, "retract the template's upcoming shifts before expanding")
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	templateID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || templateID <= 0 {
		return fmt.Errorf("invalid template id %q: expected a positive integer", args[0])
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := setup(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	created, err := app.engine.RegenerateTemplate(ctx, templateID, flagPurge)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errRunCancelled
		}
		return err
	}

	slog.InfoContext(ctx, "template regenerated", "template_id", templateID, "created", created, "purge", flagPurge)
	return nil
}
