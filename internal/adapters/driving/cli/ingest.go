package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/shopbot/internal/connectors/filesystem"
	"github.com/custodia-labs/shopbot/internal/logger"
	"github.com/custodia-labs/shopbot/internal/normalisers"
)

var (
	ingestTitle  string
	ingestWatch  bool
	ingestDelete bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file|dir]...",
	Short: "Chunk, embed and store documents",
	Long: `Reads each file, splits it into chunks and embeds them. Ingesting a
document again replaces its previous chunks.

Directories are walked recursively. Hidden entries and files without a
supported extension (.md, .txt, .html, .docx, .csv, .json, .yaml, .toml)
are skipped.

With --watch the command keeps running and re-ingests files as they change.
With --delete the documents are removed from the store instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (single file only)")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "re-ingest files when they change")
	ingestCmd.Flags().BoolVar(&ingestDelete, "delete", false, "remove the documents instead of ingesting them")
	ingestCmd.MarkFlagsMutuallyExclusive("watch", "delete")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if ingestTitle != "" && len(files) != 1 {
		return errors.New("--title needs exactly one file")
	}
	if len(files) == 0 && !ingestWatch {
		return errors.New("no supported files found")
	}

	svc, err := loadServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck // best effort on exit

	ctx := cmd.Context()
	var failed int
	for _, path := range files {
		var err error
		if ingestDelete {
			err = deleteFile(ctx, cmd, svc, path)
		} else {
			err = ingestFile(ctx, cmd, svc, path, ingestTitle)
		}
		if err != nil {
			cmd.PrintErrf("%s: %v\n", path, err)
			failed++
		}
	}

	if ingestWatch {
		return watchFiles(cmd, svc, args)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

// collectFiles expands directories into the supported files beneath them.
// Files named explicitly are kept whatever their extension.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			hidden := path != arg && strings.HasPrefix(d.Name(), ".")
			if d.IsDir() {
				if hidden {
					return filepath.SkipDir
				}
				return nil
			}
			if !hidden && normalisers.IsSupportedFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
	}
	return files, nil
}

func ingestFile(ctx context.Context, cmd *cobra.Command, svc *Services, path, title string) error {
	doc, err := svc.Normalisers.NormaliseFile(ctx, path, title)
	if err != nil {
		return err
	}
	report, err := svc.Ingest.IngestDocument(ctx, *doc)
	if err != nil {
		return err
	}
	cmd.Printf("Ingested %s (%q): ", path, doc.Title)
	printReport(cmd, report)
	return nil
}

func deleteFile(ctx context.Context, cmd *cobra.Command, svc *Services, path string) error {
	id, err := normalisers.FileDocumentID(path)
	if err != nil {
		return err
	}
	if err := svc.Ingest.DeleteDocument(ctx, id); err != nil {
		return err
	}
	cmd.Printf("Deleted %s.\n", path)
	return nil
}

// watchFiles blocks until interrupted, applying each file change to the store.
func watchFiles(cmd *cobra.Command, svc *Services, args []string) error {
	watcher, err := filesystem.NewWatcher(args, filesystem.WithFilter(normalisers.IsSupportedFile))
	if err != nil {
		return err
	}
	defer watcher.Close() //nolint:errcheck // best effort on exit

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Println("Watching for changes. Press Ctrl+C to stop.")
	err = watcher.Watch(ctx, func(change filesystem.Change) {
		applyChange(ctx, cmd, svc, change)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// applyChange mirrors one file change into the store. Changes flushed after
// an interrupt are dropped; the next ingest run picks them up.
func applyChange(ctx context.Context, cmd *cobra.Command, svc *Services, change filesystem.Change) {
	if ctx.Err() != nil {
		logger.Debug("interrupted, not applying %s", change.Path)
		return
	}
	var err error
	switch change.Type {
	case filesystem.ChangeDeleted:
		err = deleteFile(ctx, cmd, svc, change.Path)
	default:
		err = ingestFile(ctx, cmd, svc, change.Path, "")
	}
	if err != nil {
		logger.Warn("%s: %v", change.Path, err)
	}
}
