package mixprice

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kippis-app/loyalty-core/internal/models"
)

// ErrInvalidConfiguration marks a mix configuration the calculator cannot
// price. The wrapped message says what is wrong.
var ErrInvalidConfiguration = errors.New("invalid mix configuration")

// Catalog supplies the product and modifier rows a configuration refers
// to. models.Repository satisfies it.
type Catalog interface {
	FindActiveProduct(ctx context.Context, productID uint) (*models.Product, error)
	FindActiveModifier(ctx context.Context, modifierID uint) (*models.Modifier, error)
}

// Config describes one custom mix. Exactly one base-price source must be
// set: BaseID (preferred) or BasePrice (legacy fallback).
type Config struct {
	BaseID    *uint               `json:"base_id"`
	BasePrice *decimal.Decimal    `json:"base_price"`
	Modifiers []ModifierSelection `json:"modifiers"`
	Extras    []uint              `json:"extras"`
}

// ModifierSelection picks a modifier at a level. Level defaults to 1 and
// is capped at the modifier's MaxLevel when one is configured.
type ModifierSelection struct {
	ID    uint `json:"id"`
	Level *int `json:"level"`
}

// LineItem is one human-readable breakdown entry.
type LineItem struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Quote is a priced configuration: the rounded total and its ordered
// breakdown (base first, then modifiers, then extras, in input order).
// Zero-value contributions are valid but not itemized.
type Quote struct {
	Total     decimal.Decimal `json:"total"`
	Breakdown []LineItem      `json:"breakdown"`
}

// Calculator prices mix configurations. Pure aside from catalog reads;
// safe for concurrent use.
type Calculator struct {
	catalog Catalog
}

func NewCalculator(catalog Catalog) *Calculator {
	return &Calculator{catalog: catalog}
}

func (c *Calculator) Calculate(ctx context.Context, cfg Config) (*Quote, error) {
	quote := &Quote{Total: decimal.Zero, Breakdown: []LineItem{}}

	basePrice, err := c.basePrice(ctx, cfg)
	if err != nil {
		return nil, err
	}
	quote.add("Base", basePrice)

	for _, selection := range cfg.Modifiers {
		modifier, err := c.catalog.FindActiveModifier(ctx, selection.ID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, fmt.Errorf("%w: modifier %d not found or inactive", ErrInvalidConfiguration, selection.ID)
			}
			return nil, err
		}

		level := 1
		if selection.Level != nil {
			level = *selection.Level
		}
		if level < 0 {
			return nil, fmt.Errorf("%w: modifier level cannot be negative", ErrInvalidConfiguration)
		}
		if modifier.MaxLevel != nil && level > *modifier.MaxLevel {
			level = *modifier.MaxLevel
		}

		amount := modifier.UnitPrice.Mul(decimal.NewFromInt(int64(level)))
		quote.add(modifier.Name, amount)
	}

	for _, extraID := range cfg.Extras {
		product, err := c.catalog.FindActiveProduct(ctx, extraID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, fmt.Errorf("%w: extra product %d not found or inactive", ErrInvalidConfiguration, extraID)
			}
			return nil, err
		}

		quote.add(product.Name, product.BasePrice)
	}

	quote.Total = quote.Total.Round(2)
	return quote, nil
}

func (c *Calculator) basePrice(ctx context.Context, cfg Config) (decimal.Decimal, error) {
	if cfg.BaseID != nil {
		product, err := c.catalog.FindActiveProduct(ctx, *cfg.BaseID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return decimal.Zero, fmt.Errorf("%w: base product not found or inactive", ErrInvalidConfiguration)
			}
			return decimal.Zero, err
		}
		return product.BasePrice, nil
	}

	if cfg.BasePrice != nil {
		if cfg.BasePrice.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: base price cannot be negative", ErrInvalidConfiguration)
		}
		return *cfg.BasePrice, nil
	}

	return decimal.Zero, fmt.Errorf("%w: either base_id or base_price must be provided", ErrInvalidConfiguration)
}

// add accumulates a contribution and itemizes it unless it rounds to zero.
func (q *Quote) add(label string, amount decimal.Decimal) {
	rounded := amount.Round(2)
	q.Total = q.Total.Add(rounded)
	if !rounded.IsZero() {
		q.Breakdown = append(q.Breakdown, LineItem{Label: label, Amount: rounded})
	}
}
