package yamlfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

const mappingCatalog = `
products:
  - id: 1
    name: Trail Runner
    name_alt: ပြေးဖိနပ်
    description: Waterproof running shoe
    category: Footwear
    brand: Acme
    price: 89.9
    stock_quantity: 12
  - id: 2
    name: Rain Jacket
    category: Outerwear
    price: 120
    stock_quantity: 0
`

func TestDecode_MappingForm(t *testing.T) {
	products, err := Decode(strings.NewReader(mappingCatalog))
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, int64(1), products[0].ID)
	assert.Equal(t, "Trail Runner", products[0].Name)
	assert.Equal(t, "ပြေးဖိနပ်", products[0].NameAlt)
	assert.Equal(t, "Footwear", products[0].Category)
	assert.InDelta(t, 89.9, products[0].Price, 1e-9)
	assert.Equal(t, 12, products[0].StockQuantity)
	assert.False(t, products[1].InStock())
}

func TestDecode_ListForm(t *testing.T) {
	products, err := Decode(strings.NewReader("- id: 7\n  name: Sock\n  price: 3\n"))
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Sock", products[0].Name)
}

func TestDecode_DerivedFieldsIgnored(t *testing.T) {
	products, err := Decode(strings.NewReader("- id: 7\n  name: Sock\n  serialized_text: hacked\n  state: fresh\n"))
	require.NoError(t, err)
	assert.Empty(t, products[0].SerializedText)
	assert.Empty(t, products[0].State)
}

func TestDecode_Empty(t *testing.T) {
	products, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid yaml", "products: [\n"},
		{"scalar root", "just text"},
		{"missing name", "- id: 1\n"},
		{"non-positive id", "- id: 0\n  name: X\n"},
		{"negative stock", "- id: 1\n  name: X\n  stock_quantity: -1\n"},
		{"duplicate id", "- id: 1\n  name: X\n- id: 1\n  name: Y\n"},
		{"wrong type", "- id: one\n  name: X\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mappingCatalog), 0o600))

	products, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWrite_ReadBack(t *testing.T) {
	in := []domain.Product{{ID: 3, Name: "Cap", Brand: "Acme", Price: 15, StockQuantity: 4}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "products:\n"))

	out, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].Name, out[0].Name)
	assert.Equal(t, in[0].StockQuantity, out[0].StockQuantity)
}
