package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/KadirKcbs/cobratoolbox/internal/diet"
	"github.com/spf13/cobra"
)

func newDietCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diet <file>",
		Short: "Inspect a diet table",
		Long: `Parse a diet table and report its exchange bounds.

Reaction identifiers are shown in normalized form, the way the
simulation applies them. Useful for catching identifier mismatches
before a batch run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := diet.LoadTable(args[0])
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(table)
			}

			ids := make([]string, 0, len(table.Fluxes))
			for id := range table.Fluxes {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Printf("%s\t%g\n", id, table.Fluxes[id])
			}
			fmt.Printf("%d exchanges, %d personalized sample columns\n",
				len(table.Fluxes), len(table.SampleCoefficients))
			return nil
		},
	}
	return cmd
}
