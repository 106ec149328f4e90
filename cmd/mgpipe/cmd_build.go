package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/KadirKcbs/cobratoolbox/internal/logging"
	"github.com/KadirKcbs/cobratoolbox/internal/simulate"
	"github.com/spf13/cobra"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [sample...]",
		Short: "Assemble community models without simulating",
		Long: `Assemble and persist the community model for one or more samples.

Useful for inspecting an assembly before committing to a full simulation
batch, or for pre-building models on a machine with more memory than the
solver host. Without arguments, every configured sample is built.

Example:
  mgpipe build --config pipeline.yaml SRS011061`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			samples := args
			if len(samples) == 0 {
				samples = cfg.Samples
			}
			if len(samples) == 0 {
				return fmt.Errorf("no samples configured or given")
			}

			models, err := openModelStore(cfg)
			if err != nil {
				return err
			}
			defer models.Close()
			abundances, err := loadAbundances(cfg)
			if err != nil {
				return err
			}
			if abundances == nil {
				return fmt.Errorf("abundance_file is required to assemble communities")
			}

			log := logging.NewLogger(cfg.Logging.Level, os.Stderr)
			assembler := simulate.NewAssembler(models, simulate.AssemblerOptions{
				HostModel:           cfg.Host.ModelPath,
				Workers:             cfg.Workers,
				SequentialThreshold: cfg.SequentialMergeThreshold,
				Logger:              log,
			})

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			notifySignals(sigCh)
			go func() {
				<-sigCh
				cancel()
			}()

			jsonOut, _ := cmd.Flags().GetBool("json")
			type buildResult struct {
				Sample      string `json:"sample"`
				Metabolites int    `json:"metabolites"`
				Reactions   int    `json:"reactions"`
			}
			var results []buildResult

			for _, sampleID := range samples {
				organisms, err := abundances.Organisms(sampleID)
				if err != nil {
					return err
				}
				community, err := assembler.Community(ctx, sampleID, organisms, abundances[sampleID])
				if err != nil {
					return fmt.Errorf("sample %s: %w", sampleID, err)
				}
				if err := models.SaveCommunity(ctx, sampleID, community, cfg.Host.Present()); err != nil {
					return fmt.Errorf("sample %s: %w", sampleID, err)
				}
				results = append(results, buildResult{
					Sample:      sampleID,
					Metabolites: len(community.Metabolites),
					Reactions:   len(community.Reactions),
				})
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(results)
			}
			for _, r := range results {
				fmt.Printf("%s: %d metabolites, %d reactions\n", r.Sample, r.Metabolites, r.Reactions)
			}
			return nil
		},
	}
	return cmd
}
