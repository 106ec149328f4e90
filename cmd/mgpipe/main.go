package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "mgpipe",
		Short: "Microbiome community modeling pipeline",
		Long: `mgpipe assembles per-sample gut community models from organism
reconstructions and simulates them under dietary scenarios.

Organism models are adapted into a shared-lumen community, optionally
coupled to a host model, constrained by a diet, and optimized for
community biomass. Results are checkpointed after every sample so an
interrupted batch resumes where it stopped.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file (YAML)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newBuildCmd(),
		newDietCmd(),
		newStatusCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("mgpipe version %s\n", version)
			}
		},
	}
}
