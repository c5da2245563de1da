package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/NguyenLeGiangHa/cohort/internal/segment"
	"github.com/NguyenLeGiangHa/cohort/internal/types"
)

var compileCmd = &cobra.Command{
	Use:   "compile <definition.json>",
	Short: "Compile a segment definition file into a filter query",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().Bool("extended", false, "honor events, groups, related datasets and segment references")
	compileCmd.Flags().Int("limit", 0, "row limit (default: preview limit from config)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	def, err := readDefinition(args[0])
	if err != nil {
		return err
	}

	extended, _ := cmd.Flags().GetBool("extended")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = cfg.PreviewLimit
	}

	opts := segment.Options{
		Limit:         limit,
		DefaultSchema: cfg.DefaultSchema,
		Relations:     segment.DefaultRelations,
	}
	if extended {
		opts.Mode = segment.ModeExtended
	}

	query, diag := segment.Compile(def, opts)
	reportDiagnostics(diag)

	fmt.Println(query)
	return nil
}

func readDefinition(path string) (types.SegmentDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.SegmentDefinition{}, fmt.Errorf("failed to read definition: %w", err)
	}
	var def types.SegmentDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return types.SegmentDefinition{}, fmt.Errorf("failed to decode definition: %w", err)
	}
	return def, nil
}

func reportDiagnostics(diag segment.Diagnostics) {
	if diag.Skipped > 0 {
		slog.Warn("incomplete conditions elided", "count", diag.Skipped)
	}
	for _, w := range diag.Warnings {
		slog.Warn(w)
	}
}
