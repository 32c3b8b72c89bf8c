package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/memstore"
)

var (
	searchUserID    string
	searchLimit     int
	searchThreshold float64
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a one-off semantic search against stored memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if searchUserID == "" {
			return fmt.Errorf("--user-id is required")
		}

		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		defer rt.Close()

		results, err := rt.engine.Search(ctx, args[0], searchUserID, memstore.SearchOptions{
			Limit:     searchLimit,
			Threshold: searchThreshold,
		})
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		if len(results) == 0 {
			fmt.Println("no matches")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%.3f  %s  %s\n", r.Score, r.ID, r.Memory)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchUserID, "user-id", "", "User to search within (required)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "Minimum score threshold")
}
