package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/shopbot/internal/adapters/driven/catalog/yamlfile"
)

var catalogNoEmbed bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage catalog products",
	Long: `Import, export and delete catalog products.

Products are read from YAML: either a list of products or a mapping with a
'products' key. Each product needs an id and a name; price and
stock_quantity must not be negative.`,
}

var catalogImportCmd = &cobra.Command{
	Use:   "import [file.yaml]",
	Short: "Upsert products from a YAML file",
	Long: `Validates every product in the file, then upserts them. Products whose
text changed are marked stale and re-embedded unless --no-embed is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogImport,
}

var catalogDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a product and its vector",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogDelete,
}

var catalogExportCmd = &cobra.Command{
	Use:   "export [file.yaml]",
	Short: "Write the catalog as YAML (stdout when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCatalogExport,
}

func init() {
	catalogImportCmd.Flags().BoolVar(&catalogNoEmbed, "no-embed", false, "leave changed products stale")
	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogDeleteCmd)
	catalogCmd.AddCommand(catalogExportCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	products, err := yamlfile.Load(args[0])
	if err != nil {
		return err
	}

	svc, err := loadServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck // best effort on exit

	stale, err := svc.Catalog.SaveProducts(cmd.Context(), products)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	cmd.Printf("Imported %d products (%d need embedding).\n", len(products), stale)

	if stale == 0 || catalogNoEmbed {
		return nil
	}
	return reconcileAndReport(cmd, svc)
}

func runCatalogDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid product id %q", args[0])
	}

	svc, err := loadServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck // best effort on exit

	if err := svc.Catalog.DeleteProduct(cmd.Context(), id); err != nil {
		return err
	}
	cmd.Printf("Deleted product %d.\n", id)
	return nil
}

func runCatalogExport(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck // best effort on exit

	products, err := svc.Catalog.ListProducts(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing products: %w", err)
	}

	if len(args) == 0 {
		return yamlfile.Write(cmd.OutOrStdout(), products)
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("creating %s: %w", args[0], err)
	}
	if err := yamlfile.Write(f, products); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	cmd.Printf("Exported %d products to %s.\n", len(products), args[0])
	return nil
}
