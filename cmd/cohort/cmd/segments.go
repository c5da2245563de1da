package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/NguyenLeGiangHa/cohort/internal/core/db"
	"github.com/NguyenLeGiangHa/cohort/internal/core/registry"
	"github.com/NguyenLeGiangHa/cohort/internal/types"
)

var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "Manage persisted segment definitions",
}

var segmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted segments",
	RunE:  runSegmentsList,
}

var segmentsCreateCmd = &cobra.Command{
	Use:   "create <definition.json>",
	Short: "Persist a segment definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegmentsCreate,
}

var segmentsShowCmd = &cobra.Command{
	Use:   "show <segment-slug>",
	Short: "Print a persisted segment definition as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegmentsShow,
}

var segmentsDeleteCmd = &cobra.Command{
	Use:   "delete <segment-id>",
	Short: "Delete a segment and its membership snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegmentsDelete,
}

func init() {
	rootCmd.AddCommand(segmentsCmd)
	segmentsCmd.AddCommand(segmentsListCmd)
	segmentsCmd.AddCommand(segmentsCreateCmd)
	segmentsCmd.AddCommand(segmentsShowCmd)
	segmentsCmd.AddCommand(segmentsDeleteCmd)
}

func openRegistry() (*registry.Registry, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	conn, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	queries, err := db.LoadQueries(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return registry.New(queries), func() { conn.Close() }, nil
}

func runSegmentsList(cmd *cobra.Command, args []string) error {
	reg, closeDB, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeDB()

	defs, err := reg.List(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tNAME\tDATASET\tID")
	for _, def := range defs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.Slug, def.Name, def.Dataset, def.SegmentID)
	}
	return w.Flush()
}

func runSegmentsCreate(cmd *cobra.Command, args []string) error {
	def, err := readDefinition(args[0])
	if err != nil {
		return err
	}
	if def.SegmentID == "" {
		def.SegmentID = types.NewSegmentID()
	}
	if def.Slug == "" {
		def.Slug = types.DeriveSlug(def.Name)
	}

	reg, closeDB, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := reg.Create(cmd.Context(), def); err != nil {
		return err
	}
	slog.Info("segment created", "slug", def.Slug, "id", string(def.SegmentID))
	return nil
}

func runSegmentsShow(cmd *cobra.Command, args []string) error {
	reg, closeDB, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeDB()

	def, err := reg.GetBySlug(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(def)
}

func runSegmentsDelete(cmd *cobra.Command, args []string) error {
	id, err := types.ParseSegmentID(args[0])
	if err != nil {
		return fmt.Errorf("invalid segment id: %w", err)
	}

	reg, closeDB, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := reg.Delete(cmd.Context(), id); err != nil {
		return err
	}
	slog.Info("segment deleted", "id", args[0])
	return nil
}
