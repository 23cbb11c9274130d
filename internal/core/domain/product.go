package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EmbeddingState tracks whether a persisted embedding still reflects its
// source text.
type EmbeddingState string

// Embedding states.
const (
	// EmbeddingFresh means the embedding was computed from the current text.
	EmbeddingFresh EmbeddingState = "fresh"

	// EmbeddingStale means the text changed, or was never embedded.
	EmbeddingStale EmbeddingState = "stale"
)

// IsValid returns true if the state is recognised.
func (s EmbeddingState) IsValid() bool {
	return s == EmbeddingFresh || s == EmbeddingStale
}

// String returns the string representation.
func (s EmbeddingState) String() string {
	return string(s)
}

// Product is a catalog entity.
type Product struct {
	// ID is the catalog primary key.
	ID int64 `json:"id" yaml:"id"`

	// Name is the primary-language product name.
	Name string `json:"name" yaml:"name"`

	// NameAlt is the secondary-language product name.
	NameAlt string `json:"name_alt,omitempty" yaml:"name_alt"`

	// Description is the primary-language description.
	Description string `json:"description,omitempty" yaml:"description"`

	// DescriptionAlt is the secondary-language description.
	DescriptionAlt string `json:"description_alt,omitempty" yaml:"description_alt"`

	// Category groups products, e.g. "Footwear".
	Category string `json:"category,omitempty" yaml:"category"`

	// Brand is the manufacturer or label.
	Brand string `json:"brand,omitempty" yaml:"brand"`

	// Price is the unit price in the store currency.
	Price float64 `json:"price" yaml:"price"`

	// StockQuantity is the number of units on hand.
	StockQuantity int `json:"stock_quantity" yaml:"stock_quantity"`

	// SerializedText is the canonical flattened text used as embedding input.
	// It is derived from the fields above by BuildSerializedText.
	SerializedText string `json:"serialized_text,omitempty" yaml:"-"`

	// Embedding is the vector computed from SerializedText.
	Embedding []float32 `json:"-" yaml:"-"`

	// State is fresh when Embedding was computed from SerializedText.
	State EmbeddingState `json:"state,omitempty" yaml:"-"`

	// UpdatedAt is when the catalog fields last changed.
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// InStock reports whether at least one unit is available.
func (p *Product) InStock() bool {
	return p.StockQuantity > 0
}

// Stale reports whether the product needs re-embedding.
func (p *Product) Stale() bool {
	return p.State != EmbeddingFresh || len(p.Embedding) == 0
}

// Validate checks the fields a catalog write requires.
func (p *Product) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: product id must be positive, got %d", ErrInvalidArgument, p.ID)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product %d has no name", ErrInvalidArgument, p.ID)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: product %d has negative price", ErrInvalidArgument, p.ID)
	}
	if p.StockQuantity < 0 {
		return fmt.Errorf("%w: product %d has negative stock", ErrInvalidArgument, p.ID)
	}
	return nil
}

// BuildSerializedText renders the product as "key: value" pairs joined by
// " | ". Empty text fields are skipped and inner whitespace is collapsed,
// so formatting-only edits do not change the embedding input.
func (p *Product) BuildSerializedText() string {
	parts := []string{"id: " + strconv.FormatInt(p.ID, 10)}
	add := func(key, value string) {
		if v := collapseSpace(value); v != "" {
			parts = append(parts, key+": "+v)
		}
	}
	add("name", p.Name)
	add("name_alt", p.NameAlt)
	add("description", p.Description)
	add("description_alt", p.DescriptionAlt)
	add("category", p.Category)
	add("brand", p.Brand)
	parts = append(parts,
		"price: "+strconv.FormatFloat(p.Price, 'f', 2, 64),
		"stock_quantity: "+strconv.Itoa(p.StockQuantity),
	)
	return strings.Join(parts, " | ")
}

// collapseSpace trims s and replaces every whitespace run with one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
