package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
	"github.com/custodia-labs/cliniq/internal/logger"
)

var (
	ingestJSON    bool
	watchExisting bool
	removePatient bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Chunk, embed and index clinical artifacts",
	Long: `Reads artifacts from YAML or JSON files and indexes them for retrieval.

A file holds one artifact or a list of artifacts:

  id: note-1
  type: progress_note
  patient_id: p1
  occurred_at: 2024-03-01T09:00:00Z
  text: |
    Patient prescribed Metformin 500mg twice daily.

Raw notes (.txt, .md, .html, .docx, .pdf) are ingested when --patient is
given; their text is extracted and the remaining metadata comes from flags:

  cliniq ingest --patient p1 --type discharge_summary --occurred 2024-03-04 summary.pdf

Directories are read non-recursively. Re-ingesting an artifact is a no-op.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var ingestWatchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest artifact files as they appear in a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngestWatch,
}

var removeCmd = &cobra.Command{
	Use:   "remove [artifact-id]",
	Short: "Remove an artifact and its chunks",
	Long: `Removes an artifact, its chunks and its stored text.
With --patient the argument is a patient ID and all of that patient's
artifacts are removed.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output reports as JSON")
	for _, c := range []*cobra.Command{ingestCmd, ingestWatchCmd} {
		c.Flags().StringVar(&rawNote.patientID, "patient", "", "patient ID for raw note files")
		c.Flags().StringVar(&rawNote.kind, "type", "note", "artifact type for raw note files")
		c.Flags().StringVar(&rawNote.occurredAt, "occurred", "", "clinical time of raw notes (RFC 3339 or YYYY-MM-DD)")
		c.Flags().StringVar(&rawNote.author, "author", "", "author of raw note files")
	}
	ingestCmd.Flags().StringVar(&rawNote.id, "id", "", "artifact ID for a single raw note file")
	ingestWatchCmd.Flags().BoolVar(&watchExisting, "existing", true, "ingest files already in the directory first")
	removeCmd.Flags().BoolVar(&removePatient, "patient", false, "treat the argument as a patient ID")
	ingestCmd.AddCommand(ingestWatchCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(removeCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := requireCore(ctx); err != nil {
		return err
	}

	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	if rawNote.id != "" && len(paths) != 1 {
		return fmt.Errorf("%w: --id needs exactly one file", domain.ErrInvalidInput)
	}

	reports := make([]*driving.IngestReport, 0, len(paths))
	for _, path := range paths {
		r, err := ingestFile(ctx, path)
		if err != nil {
			return err
		}
		reports = append(reports, r...)
	}

	if ingestJSON {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal reports: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	for _, r := range reports {
		printIngestReport(cmd, r)
	}
	return nil
}

func printIngestReport(cmd *cobra.Command, r *driving.IngestReport) {
	cmd.Printf("%s: %d chunk(s), %d stored, %d skipped\n",
		r.ArtifactID, r.Chunks, r.Store.StoredCount, r.Store.SkippedCount)
	for _, e := range r.Store.Errors {
		cmd.Printf("  rejected chunk %d: %s\n", e.Index, e.Message)
	}
}

// expandPaths replaces each directory argument with the files in it that
// can be ingested.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var files []string
		for _, e := range entries {
			if !e.IsDir() && isIngestible(e.Name()) {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(files)
		paths = append(paths, files...)
	}
	return paths, nil
}

func ingestFile(ctx context.Context, path string) ([]*driving.IngestReport, error) {
	if ingestService == nil {
		return nil, errors.New("ingest service not configured")
	}

	var artifacts []domain.Artifact
	if isDocument(path) {
		docs, err := readArtifacts(path)
		if err != nil {
			return nil, err
		}
		artifacts = docs
	} else {
		a, err := readNote(ctx, path)
		if err != nil {
			return nil, err
		}
		artifacts = []domain.Artifact{*a}
	}

	reports := make([]*driving.IngestReport, 0, len(artifacts))
	for i := range artifacts {
		r, err := ingestService.Ingest(ctx, &artifacts[i])
		if err != nil {
			return reports, fmt.Errorf("ingesting %s from %s: %w", artifacts[i].ID, path, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func runIngestWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := requireCore(ctx); err != nil {
		return err
	}

	dir := args[0]
	handle := func(path string) {
		reports, err := ingestFile(ctx, path)
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			logger.Warn("%v; remove the artifact first to replace it", err)
		case err != nil:
			logger.Error("%v", err)
		}
		for _, r := range reports {
			printIngestReport(cmd, r)
		}
	}

	if watchExisting {
		paths, err := expandPaths([]string{dir})
		if err != nil {
			return err
		}
		for _, p := range paths {
			handle(p)
		}
	}

	cmd.Printf("Watching %s for artifact files (Ctrl+C to stop)\n", dir)
	if acceptsNotes() {
		cmd.Printf("Raw notes are attributed to patient %s\n", rawNote.patientID)
	}
	return watchDocuments(ctx, dir, handle)
}

// watchDocuments calls handle for every ingestible file created or written
// in dir until ctx is done.
func watchDocuments(ctx context.Context, dir string, handle func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isIngestible(event.Name) {
				continue
			}
			logger.Debug("watch: %s %s", event.Op, event.Name)
			handle(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: %v", err)
		}
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := requireCore(ctx); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if removePatient {
		n, err := ingestService.RemovePatient(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to remove patient: %w", err)
		}
		cmd.Printf("Removed %d chunk(s) for patient %s\n", n, args[0])
		return nil
	}

	n, err := ingestService.Remove(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	cmd.Printf("Removed %d chunk(s) of artifact %s\n", n, args[0])
	return nil
}
