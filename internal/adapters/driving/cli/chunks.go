package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "Inspect and maintain indexed chunks",
	Long:  `List, view, or delete indexed chunks and show store statistics.`,
}

var chunksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chunks, newest first",
	Args:  cobra.NoArgs,
	RunE:  runChunksList,
}

var chunksGetCmd = &cobra.Command{
	Use:   "get [chunk-id]",
	Short: "Show a chunk with its sentences",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunksGet,
}

var chunksDeleteCmd = &cobra.Command{
	Use:   "delete [chunk-id]",
	Short: "Delete one chunk",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunksDelete,
}

var chunksStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	Args:  cobra.NoArgs,
	RunE:  runChunksStats,
}

var chunksGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete chunks older than a date",
	Long: `Deletes chunks whose artifact occurred before the given day.
The artifacts themselves stay stored and are re-chunked on the next start.`,
	Args: cobra.NoArgs,
	RunE: runChunksGC,
}

var (
	chunksFilter    filterFlags
	chunksLimit     int
	chunksOffset    int
	chunksJSON      bool
	chunksOlderThan string
)

func init() {
	chunksFilter.register(chunksListCmd)
	chunksListCmd.Flags().IntVarP(&chunksLimit, "limit", "n", 20, "maximum number of chunks")
	chunksListCmd.Flags().IntVar(&chunksOffset, "offset", 0, "chunks to skip")
	chunksListCmd.Flags().BoolVar(&chunksJSON, "json", false, "output as JSON")
	chunksGetCmd.Flags().BoolVar(&chunksJSON, "json", false, "output as JSON")
	chunksStatsCmd.Flags().BoolVar(&chunksJSON, "json", false, "output as JSON")
	chunksGCCmd.Flags().StringVar(&chunksOlderThan, "before", "", "delete chunks that occurred before this day (YYYY-MM-DD)")
	_ = chunksGCCmd.MarkFlagRequired("before")

	chunksCmd.AddCommand(chunksListCmd)
	chunksCmd.AddCommand(chunksGetCmd)
	chunksCmd.AddCommand(chunksDeleteCmd)
	chunksCmd.AddCommand(chunksStatsCmd)
	chunksCmd.AddCommand(chunksGCCmd)
	rootCmd.AddCommand(chunksCmd)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func runChunksList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := requireCore(ctx); err != nil {
		return err
	}
	if chunkService == nil {
		return errors.New("chunk service not configured")
	}

	filter, err := chunksFilter.toDomain()
	if err != nil {
		return err
	}
	filter.Limit = chunksLimit
	filter.Offset = chunksOffset

	chunks, err := chunkService.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}

	if chunksJSON {
		return printJSON(cmd, chunks)
	}

	if len(chunks) == 0 {
		cmd.Println("No chunks found.")
		return nil
	}

	for i := range chunks {
		c := &chunks[i]
		cmd.Printf("  %s\n", c.ID)
		cmd.Printf("    Artifact: %s (%s) [%d,%d)\n", c.ArtifactID, c.ArtifactType, c.Offsets.Start, c.Offsets.End)
		cmd.Printf("    Patient:  %s  %s\n", c.PatientID, c.OccurredAt.Format(domain.DayLayout))
		cmd.Printf("    %s\n", preview(c.Text, 80))
		cmd.Println()
	}

	cmd.Printf("Showing %d chunk(s)\n", len(chunks))
	return nil
}

func runChunksGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := requireCore(ctx); err != nil {
		return err
	}
	if chunkService == nil {
		return errors.New("chunk service not configured")
	}

	details, err := chunkService.GetDetails(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get chunk: %w", err)
	}

	if chunksJSON {
		return printJSON(cmd, details)
	}

	c := &details.Chunk
	cmd.Printf("Chunk: %s\n\n", c.ID)
	cmd.Printf("  Artifact:  %s\n", c.ArtifactID)
	cmd.Printf("  Type:      %s\n", c.ArtifactType)
	cmd.Printf("  Patient:   %s\n", c.PatientID)
	cmd.Printf("  Occurred:  %s\n", c.OccurredAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Offsets:   [%d,%d)\n", c.Offsets.Start, c.Offsets.End)
	cmd.Printf("  Position:  %d of %d\n", c.Position+1, details.SiblingCount)
	if details.PreviousID != "" {
		cmd.Printf("  Previous:  %s\n", details.PreviousID)
	}
	if details.NextID != "" {
		cmd.Printf("  Next:      %s\n", details.NextID)
	}

	cmd.Println("\n  Sentences:")
	for _, s := range details.Sentences {
		cmd.Printf("    %s [%d,%d) %s\n", s.ID, s.AbsoluteOffsets.Start, s.AbsoluteOffsets.End, s.Text)
	}
	return nil
}

func runChunksDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := requireCore(ctx); err != nil {
		return err
	}
	if chunkService == nil {
		return errors.New("chunk service not configured")
	}

	if err := chunkService.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete chunk: %w", err)
	}
	cmd.Printf("Deleted chunk: %s\n", args[0])
	return nil
}

func runChunksStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := requireCore(ctx); err != nil {
		return err
	}
	if chunkService == nil {
		return errors.New("chunk service not configured")
	}

	stats, err := chunkService.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	if chunksJSON {
		return printJSON(cmd, stats)
	}

	cmd.Printf("Chunks:    %d\n", stats.TotalChunks)
	cmd.Printf("Artifacts: %d\n", stats.TotalArtifacts)
	cmd.Printf("Patients:  %d\n", stats.TotalPatients)
	if stats.OldestChunkDate != nil && stats.NewestChunkDate != nil {
		cmd.Printf("Range:     %s to %s\n",
			stats.OldestChunkDate.Format(domain.DayLayout), stats.NewestChunkDate.Format(domain.DayLayout))
	}

	if len(stats.ChunksByType) > 0 {
		types := make([]string, 0, len(stats.ChunksByType))
		for t := range stats.ChunksByType {
			types = append(types, t)
		}
		sort.Strings(types)
		cmd.Println("\nBy type:")
		for _, t := range types {
			cmd.Printf("  %-20s %d\n", t, stats.ChunksByType[t])
		}
	}
	return nil
}

func runChunksGC(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := requireCore(ctx); err != nil {
		return err
	}
	if chunkService == nil {
		return errors.New("chunk service not configured")
	}

	before, err := domain.ParseDay(chunksOlderThan)
	if err != nil {
		return err
	}
	if before == nil {
		return fmt.Errorf("%w: --before is required", domain.ErrInvalidInput)
	}

	n, err := chunkService.GarbageCollect(ctx, *before)
	if err != nil {
		return fmt.Errorf("garbage collection failed: %w", err)
	}
	cmd.Printf("Removed %d chunk(s) older than %s\n", n, before.Format(domain.DayLayout))
	return nil
}

// preview returns the first n runes of s on one line.
func preview(s string, n int) string {
	r := []rune(s)
	out := s
	if len(r) > n {
		out = string(r[:n]) + "..."
	}
	return collapseLines(out)
}

func collapseLines(s string) string {
	b := []rune(s)
	for i, c := range b {
		if c == '\n' || c == '\r' || c == '\t' {
			b[i] = ' '
		}
	}
	return string(b)
}
