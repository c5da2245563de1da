package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NguyenLeGiangHa/cohort/internal/core/dataset"
	"github.com/NguyenLeGiangHa/cohort/internal/core/db"
	"github.com/NguyenLeGiangHa/cohort/internal/core/registry"
	"github.com/NguyenLeGiangHa/cohort/internal/segment"
)

var previewCmd = &cobra.Command{
	Use:   "preview <segment-slug>",
	Short: "Execute a persisted segment's query and show matching rows",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().Bool("extended", false, "honor events, groups, related datasets and segment references")
	previewCmd.Flags().Int("limit", 0, "row limit (default: preview limit from config)")
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	conn, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	queries, err := db.LoadQueries(conn)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	reg := registry.New(queries)
	def, err := reg.GetBySlug(ctx, args[0])
	if err != nil {
		return err
	}

	source := dataset.NewSource(conn, cfg.DefaultSchema)
	attrs, err := source.Attributes(ctx, def.Dataset)
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
		Attributes:    attrs,
		Relations:     segment.DefaultRelations,
	}
	if extended {
		opts.Mode = segment.ModeExtended
	}

	query, diag := segment.Compile(def, opts)
	reportDiagnostics(diag)

	preview, err := dataset.NewExecutor(conn).Run(ctx, query)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(preview.Rows); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d rows\n", preview.RowCount)
	return nil
}
