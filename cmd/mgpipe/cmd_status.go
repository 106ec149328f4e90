package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/KadirKcbs/cobratoolbox/internal/checkpoint"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show batch progress from the checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ckpt, err := checkpoint.NewStore(cfg.ResultDir)
			if err != nil {
				return err
			}
			state, err := ckpt.Load()
			if err != nil {
				return err
			}

			completed := 0
			for _, sr := range state.Samples {
				if sr.Complete {
					completed++
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"configured": len(cfg.Samples),
					"completed":  completed,
					"infeasible": state.Infeasible,
				})
			}
			fmt.Printf("%d/%d samples complete\n", completed, len(cfg.Samples))
			for _, e := range state.Infeasible {
				fmt.Printf("infeasible: %s (%s)\n", e.SampleID, e.Scenario)
			}
			return nil
		},
	}
	return cmd
}
