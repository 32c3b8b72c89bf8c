package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/memstore"
)

var (
	ingestUserID string
	ingestMode   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [text]",
	Short: "Extract and store facts from a transcript",
	Long:  "Reads the transcript from the given argument, or from stdin if no argument is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var input string
		if len(args) == 1 {
			input = args[0]
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			input = strings.TrimSpace(string(data))
		}
		if input == "" {
			return fmt.Errorf("no transcript text given (pass an argument or pipe to stdin)")
		}
		if ingestUserID == "" {
			return fmt.Errorf("--user-id is required")
		}

		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		defer rt.Close()

		mode := memstore.ModeNormal
		switch ingestMode {
		case string(memstore.ModeSummary):
			mode = memstore.ModeSummary
		case string(memstore.ModeInit):
			mode = memstore.ModeInit
		}

		results, err := rt.engine.Ingest(ctx, input, ingestUserID, memstore.IngestOptions{Mode: mode})
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		if len(results) == 0 {
			fmt.Println("no facts extracted")
			return nil
		}
		for _, r := range results {
			fmt.Printf("[%s] %s: %s\n", r.Event, r.ID, r.Memory)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestUserID, "user-id", "", "User the memory belongs to (required)")
	ingestCmd.Flags().StringVar(&ingestMode, "mode", string(memstore.ModeNormal), "Extraction mode: normal, summary, or init")
}
