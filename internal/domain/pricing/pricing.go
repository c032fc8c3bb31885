// Package pricing implements the print-job quoting engine: a pure function
// from file size and print options to an integer price in cents.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UnknownMaterialError is returned in strict mode when the material has no
// configured multiplier.
type UnknownMaterialError struct {
	Material string
}

func (e *UnknownMaterialError) Error() string {
	return fmt.Sprintf("unknown material %q", e.Material)
}

// UnknownQualityError is returned in strict mode when the quality tier has no
// configured multiplier.
type UnknownQualityError struct {
	Quality string
}

func (e *UnknownQualityError) Error() string {
	return fmt.Sprintf("unknown quality tier %q", e.Quality)
}

// Config holds the tunable pricing tables. Multiplier maps are keyed by
// lowercase enum value; lookups are case-insensitive.
type Config struct {
	// BasePrice is the starting cost of any print job, in currency units.
	BasePrice decimal.Decimal

	MaterialMultipliers map[string]decimal.Decimal
	QualityMultipliers  map[string]decimal.Decimal

	// SizeCostPerMiB is added per mebibyte of uploaded file size.
	SizeCostPerMiB decimal.Decimal

	StandardShipping decimal.Decimal
	ExpressShipping  decimal.Decimal

	// Strict makes unknown material/quality values an error instead of
	// silently falling back to a 1.0 multiplier.
	Strict bool
}

// DefaultConfig returns the production pricing tables.
func DefaultConfig() Config {
	return Config{
		BasePrice: decimal.RequireFromString("10.00"),
		MaterialMultipliers: map[string]decimal.Decimal{
			"pla":   decimal.RequireFromString("1.0"),
			"abs":   decimal.RequireFromString("1.2"),
			"petg":  decimal.RequireFromString("1.15"),
			"nylon": decimal.RequireFromString("1.5"),
			"resin": decimal.RequireFromString("2.0"),
		},
		QualityMultipliers: map[string]decimal.Decimal{
			"standard": decimal.RequireFromString("1.0"),
			"high":     decimal.RequireFromString("1.5"),
			"ultra":    decimal.RequireFromString("2.0"),
		},
		SizeCostPerMiB:   decimal.RequireFromString("0.1"),
		StandardShipping: decimal.NewFromInt(5),
		ExpressShipping:  decimal.NewFromInt(15),
	}
}

// Input describes one print job to quote. Zero values for Quantity,
// ScalePercent, and InfillPercent are fed into the formula as-is: zero is
// numerically valid here, so callers must apply defaults (1, 100, 20) before
// quoting if absent-means-default semantics are wanted.
type Input struct {
	FileSizeBytes int64
	Material      string
	ScalePercent  float64
	Quantity      int
	InfillPercent int
	Quality       string
	Shipping      string
}

// Engine quotes print jobs against an immutable Config.
type Engine struct {
	cfg Config
	lg  *zap.Logger
}

// NewEngine creates an Engine. A nil logger disables fallback warnings.
func NewEngine(cfg Config, lg *zap.Logger) *Engine {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Engine{cfg: cfg, lg: lg}
}

var (
	hundred  = decimal.NewFromInt(100)
	twenty   = decimal.NewFromInt(20)
	mebibyte = decimal.NewFromInt(1 << 20)
)

// Quote computes the price of one print job in integer cents.
//
// price = (base * material * scale/100 * quality * infill/20
//          + sizeCost + shipping) * quantity
//
// The result is deterministic, involves no I/O, and is monotonically
// non-decreasing in file size, scale, infill, and quantity. Unknown material
// or quality values fall back to a 1.0 multiplier unless Config.Strict is
// set, in which case a typed error is returned.
func (e *Engine) Quote(in Input) (int64, error) {
	material, ok := e.cfg.MaterialMultipliers[strings.ToLower(in.Material)]
	if !ok {
		if e.cfg.Strict {
			return 0, &UnknownMaterialError{Material: in.Material}
		}
		e.lg.Warn("unknown material, using 1.0 multiplier", zap.String("material", in.Material))
		material = decimal.NewFromInt(1)
	}

	quality, ok := e.cfg.QualityMultipliers[strings.ToLower(in.Quality)]
	if !ok {
		if e.cfg.Strict {
			return 0, &UnknownQualityError{Quality: in.Quality}
		}
		e.lg.Warn("unknown quality tier, using 1.0 multiplier", zap.String("quality", in.Quality))
		quality = decimal.NewFromInt(1)
	}

	shipping := e.cfg.StandardShipping
	if strings.EqualFold(in.Shipping, "express") {
		shipping = e.cfg.ExpressShipping
	}

	scale := decimal.NewFromFloat(in.ScalePercent).Div(hundred)
	infill := decimal.NewFromInt(int64(in.InfillPercent)).Div(twenty)
	sizeCost := decimal.NewFromInt(in.FileSizeBytes).Div(mebibyte).Mul(e.cfg.SizeCostPerMiB)

	subtotal := e.cfg.BasePrice.
		Mul(material).
		Mul(scale).
		Mul(quality).
		Mul(infill).
		Add(sizeCost).
		Add(shipping)

	total := subtotal.Mul(decimal.NewFromInt(int64(in.Quantity)))

	return total.Mul(hundred).Round(0).IntPart(), nil
}
