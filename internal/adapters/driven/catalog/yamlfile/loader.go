package yamlfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

// catalogFile is the mapping form of a catalog.
type catalogFile struct {
	Products []domain.Product `yaml:"products"`
}

// Load reads and validates the catalog at path.
func Load(path string) ([]domain.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	products, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return products, nil
}

// Decode parses a catalog document from r. Every product is validated
// and ids must be unique within the file.
func Decode(r io.Reader) ([]domain.Product, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: parsing catalog: %v", domain.ErrInvalidArgument, err)
	}

	products, err := decodeNode(&root)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(products))
	for i := range products {
		p := &products[i]
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i+1, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: duplicate product id %d", domain.ErrInvalidArgument, p.ID)
		}
		seen[p.ID] = true
	}
	return products, nil
}

// decodeNode accepts either a sequence of products or a mapping with a
// products key.
func decodeNode(root *yaml.Node) ([]domain.Product, error) {
	node := root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}

	var products []domain.Product
	switch node.Kind {
	case yaml.SequenceNode:
		if err := node.Decode(&products); err != nil {
			return nil, fmt.Errorf("%w: decoding products: %v", domain.ErrInvalidArgument, err)
		}
	case yaml.MappingNode:
		var file catalogFile
		if err := node.Decode(&file); err != nil {
			return nil, fmt.Errorf("%w: decoding products: %v", domain.ErrInvalidArgument, err)
		}
		products = file.Products
	default:
		return nil, fmt.Errorf("%w: catalog must be a list or a mapping with a products key", domain.ErrInvalidArgument)
	}
	return products, nil
}

// Write encodes products in the mapping form. Used by "catalog export".
func Write(w io.Writer, products []domain.Product) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalogFile{Products: products}); err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}
	return enc.Close()
}
