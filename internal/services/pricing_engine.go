package services

import (
	"errors"
	"fmt"

	domain "github.com/dulcepan/api/internal/domain"
)

var (
	// ErrInvalidItem signals a line with a non-positive quantity, a negative
	// base price, or adjustments that push the effective unit price below zero.
	ErrInvalidItem = errors.New("order pricing: invalid item")
	// ErrDepositExceedsTotal is returned when the requested deposit lands above the order total.
	ErrDepositExceedsTotal = errors.New("order pricing: deposit exceeds total")
	// ErrDepositWithoutItems is returned when a deposit is requested against an empty order.
	ErrDepositWithoutItems = errors.New("order pricing: deposit without items")
)

// PricingEngine computes order totals and enforces deposit bounds. All
// amounts are minor units (centavos); comparisons tolerate a single centavo
// of drift from client-side rounding.
type PricingEngine struct{}

func NewPricingEngine() *PricingEngine {
	return &PricingEngine{}
}

// UnitTotal folds price adjustments (variant, filling, extras) into a base
// unit price.
func (e *PricingEngine) UnitTotal(basePrice int64, adjustments ...int64) int64 {
	total := basePrice
	for _, adj := range adjustments {
		total += adj
	}
	return total
}

// Total prices the full order: the sum over lines of quantity times the
// effective unit price, plus the delivery cost. The effective unit is base
// price plus the signed adjustments; lines with a quantity below one, a
// negative base price, or a negative effective unit are rejected.
func (e *PricingEngine) Total(items []OrderItemInput, deliveryCost int64) (int64, error) {
	if deliveryCost < 0 {
		return 0, fmt.Errorf("%w: delivery cost must not be negative", ErrInvalidItem)
	}

	var total int64
	for idx, item := range items {
		if item.Quantity <= 0 {
			return 0, fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidItem, idx)
		}
		if item.BasePrice < 0 {
			return 0, fmt.Errorf("%w: item %d base price must not be negative", ErrInvalidItem, idx)
		}
		unit := e.UnitTotal(item.BasePrice, item.Adjustments)
		if unit < 0 {
			return 0, fmt.Errorf("%w: item %d base price plus adjustments must not be negative", ErrInvalidItem, idx)
		}
		total += int64(item.Quantity) * unit
	}

	return total + deliveryCost, nil
}

// ClampDeposit forces a deposit into the closed interval [0, total].
func (e *PricingEngine) ClampDeposit(deposit int64, total int64) int64 {
	if deposit < 0 {
		return 0
	}
	if deposit > total {
		return total
	}
	return deposit
}

// ValidateDeposit checks a requested deposit against the priced total before
// anything is persisted.
func (e *PricingEngine) ValidateDeposit(deposit int64, total int64, hasItems bool) error {
	if deposit <= 0 {
		return nil
	}
	if !hasItems && total <= 0 {
		return ErrDepositWithoutItems
	}
	if hasItems && deposit-total > domain.MoneyEpsilon {
		return ErrDepositExceedsTotal
	}
	return nil
}
