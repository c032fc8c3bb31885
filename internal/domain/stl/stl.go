// Package stl defines the uploaded-model aggregate: one record per uploaded
// STL file, carrying its print options, quoted price, and the back-link to
// the order group it was eventually billed under.
package stl

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no record matches the given identifier.
var ErrNotFound = errors.New("stl record not found")

// Allowed print option values. Matching is case-insensitive.
var (
	Materials = []string{"pla", "abs", "petg", "nylon"}
	Colours   = []string{"black", "white", "orange", "blue"}
	Qualities = []string{"standard", "high", "ultra"}
	Shippings = []string{"standard", "express"}
)

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// ValidMaterial reports whether v is an allowed material.
func ValidMaterial(v string) bool { return containsFold(Materials, v) }

// ValidColour reports whether v is an allowed colour.
func ValidColour(v string) bool { return containsFold(Colours, v) }

// ValidQuality reports whether v is an allowed quality tier.
func ValidQuality(v string) bool { return containsFold(Qualities, v) }

// ValidShipping reports whether v is an allowed shipping tier.
func ValidShipping(v string) bool { return containsFold(Shippings, v) }

// PrintOptions configures how one model is printed.
type PrintOptions struct {
	Material      string
	Colour        string
	ScalePercent  float64
	Quantity      int
	InfillPercent int
	Quality       string
	Shipping      string
}

// WithDefaults returns a copy with zero values replaced by the storefront
// defaults (PLA, Black, 100%, qty 1, 20% infill, Standard/Standard). The
// pricing engine deliberately does not apply these: zero is numerically
// valid input there.
func (o PrintOptions) WithDefaults() PrintOptions {
	if o.Material == "" {
		o.Material = "PLA"
	}
	if o.Colour == "" {
		o.Colour = "Black"
	}
	if o.ScalePercent == 0 {
		o.ScalePercent = 100
	}
	if o.Quantity == 0 {
		o.Quantity = 1
	}
	if o.InfillPercent == 0 {
		o.InfillPercent = 20
	}
	if o.Quality == "" {
		o.Quality = "Standard"
	}
	if o.Shipping == "" {
		o.Shipping = "Standard"
	}
	return o
}

// Record is the persisted metadata for one uploaded STL file.
type Record struct {
	ID       string
	FileID   string // object storage file identifier
	FileName string
	FileURL  string
	FileSize int64
	Options  PrintOptions

	// PriceCents is the quoted price for this file in integer cents.
	PriceCents int64

	// OrderGroupID is empty until the file is billed under an order group.
	OrderGroupID string

	CreatedAt time.Time
}

// Repository defines persistence operations for STL records.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// FindByFileID returns all records referencing the given storage file.
	FindByFileID(ctx context.Context, fileID string) ([]Record, error)
	// UpdateOptions replaces the print options and quoted price of a record.
	UpdateOptions(ctx context.Context, id string, opts PrintOptions, priceCents int64) error
	// LinkOrder writes the order-group back-link onto a record.
	LinkOrder(ctx context.Context, id, groupID string) error
	Delete(ctx context.Context, id string) error
}
