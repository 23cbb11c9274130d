package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Embed every stale product and document chunk",
	Long: `Finds products whose text changed since they were embedded and chunks
without an embedding, then embeds them in batches. Entities that could not
be embedded stay stale and are listed; run the command again to retry.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents and pending embeddings",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(statusCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck // best effort on exit

	return reconcileAndReport(cmd, svc)
}

// reconcileAndReport runs one pass and prints what it did.
func reconcileAndReport(cmd *cobra.Command, svc *Services) error {
	cmd.Println("Embedding stale entities...")
	report, err := svc.Ingest.Reconcile(cmd.Context())
	printReport(cmd, report)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	return nil
}

func printReport(cmd *cobra.Command, report domain.ReconcileReport) {
	cmd.Printf("Embedded %d products and %d chunks in %s.\n",
		report.ProductsEmbedded, report.ChunksEmbedded, report.Duration.Round(time.Millisecond))
	if n := report.Remaining(); n > 0 {
		cmd.Printf("%d entities remain stale:\n", n)
		for _, id := range report.StaleProducts {
			cmd.Printf("  product %d\n", id)
		}
		for _, ref := range report.StaleChunks {
			cmd.Printf("  chunk %s\n", ref)
		}
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck // best effort on exit

	stats, err := svc.Ingest.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}

	cmd.Println("Store")
	cmd.Println("=====")
	cmd.Printf("  Driver:    %s\n", svc.Settings.Store.Driver)
	cmd.Printf("  Products:  %d (%d stale)\n", stats.Products, stats.StaleProducts)
	cmd.Printf("  Documents: %d\n", stats.Documents)
	cmd.Printf("  Chunks:    %d (%d stale)\n", stats.Chunks, stats.StaleChunks)
	for _, w := range svc.Warnings {
		cmd.Printf("Warning: %s\n", w)
	}
	return nil
}
