package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full simulation batch",
		Long: `Run the simulation batch over every configured sample.

Each sample's community model is assembled (or reloaded when it was
persisted by an earlier run), constrained for each dietary scenario,
solved, and checkpointed. A rerun resumes from the checkpoint and skips
samples that already completed; --force-repeat redoes them.

Example:
  mgpipe run --config pipeline.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if force, _ := cmd.Flags().GetBool("force-repeat"); force {
				cfg.ForceRepeat = true
			}
			if samples, _ := cmd.Flags().GetStringSlice("sample"); len(samples) > 0 {
				cfg.Samples = samples
			}

			driver, cleanup, err := newDriver(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			notifySignals(sigCh)
			go func() {
				<-sigCh
				cancel()
			}()

			return driver.Run(ctx)
		},
	}
	cmd.Flags().Bool("force-repeat", false, "Redo samples that already completed")
	cmd.Flags().StringSlice("sample", nil, "Restrict the batch to these sample ids")
	return cmd
}
