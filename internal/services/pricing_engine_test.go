package services

import (
	"errors"
	"testing"
)

func TestPricingEngineTotal(t *testing.T) {
	engine := NewPricingEngine()

	items := []OrderItemInput{
		{ProductID: "prd_torta", Quantity: 2, BasePrice: 140_00, Adjustments: 10_00},
		{ProductID: "prd_cupcake", Quantity: 6, BasePrice: 15_00, Adjustments: -2_50},
	}

	total, err := engine.Total(items, 20_00)
	if err != nil {
		t.Fatalf("Total returned error: %v", err)
	}
	if want := int64(2*150_00 + 6*12_50 + 20_00); total != want {
		t.Fatalf("expected total %d, got %d", want, total)
	}
}

func TestPricingEngineTotalRejectsInvalidLines(t *testing.T) {
	engine := NewPricingEngine()

	cases := map[string]struct {
		items        []OrderItemInput
		deliveryCost int64
	}{
		"zero quantity":           {items: []OrderItemInput{{Quantity: 0, BasePrice: 100}}},
		"negative quantity":       {items: []OrderItemInput{{Quantity: -1, BasePrice: 100}}},
		"negative base price":     {items: []OrderItemInput{{Quantity: 1, BasePrice: -100}}},
		"negative effective unit": {items: []OrderItemInput{{Quantity: 1, BasePrice: 10_00, Adjustments: -20_00}}},
		"negative delivery":       {items: []OrderItemInput{{Quantity: 1, BasePrice: 100}}, deliveryCost: -1},
	}

	for name, tc := range cases {
		if _, err := engine.Total(tc.items, tc.deliveryCost); !errors.Is(err, ErrInvalidItem) {
			t.Fatalf("%s: expected ErrInvalidItem, got %v", name, err)
		}
	}
}

func TestPricingEngineUnitTotal(t *testing.T) {
	engine := NewPricingEngine()

	if got := engine.UnitTotal(100_00, 25_00, 10_00); got != 135_00 {
		t.Fatalf("expected 13500, got %d", got)
	}
	if got := engine.UnitTotal(100_00); got != 100_00 {
		t.Fatalf("expected base price untouched, got %d", got)
	}
	if got := engine.UnitTotal(100_00, -30_00); got != 70_00 {
		t.Fatalf("expected negative adjustment applied, got %d", got)
	}
}

func TestPricingEngineClampDeposit(t *testing.T) {
	engine := NewPricingEngine()

	if got := engine.ClampDeposit(-50, 100); got != 0 {
		t.Fatalf("expected negative deposit clamped to 0, got %d", got)
	}
	if got := engine.ClampDeposit(150, 100); got != 100 {
		t.Fatalf("expected deposit clamped to total, got %d", got)
	}
	if got := engine.ClampDeposit(80, 100); got != 80 {
		t.Fatalf("expected deposit preserved, got %d", got)
	}
}

func TestPricingEngineValidateDeposit(t *testing.T) {
	engine := NewPricingEngine()

	if err := engine.ValidateDeposit(0, 0, false); err != nil {
		t.Fatalf("zero deposit should always validate: %v", err)
	}
	if err := engine.ValidateDeposit(50_00, 100_00, true); err != nil {
		t.Fatalf("deposit under total should validate: %v", err)
	}
	// A single centavo above the total is tolerated.
	if err := engine.ValidateDeposit(100_01, 100_00, true); err != nil {
		t.Fatalf("deposit within epsilon should validate: %v", err)
	}
	if err := engine.ValidateDeposit(100_02, 100_00, true); !errors.Is(err, ErrDepositExceedsTotal) {
		t.Fatalf("expected ErrDepositExceedsTotal, got %v", err)
	}
	if err := engine.ValidateDeposit(10_00, 0, false); !errors.Is(err, ErrDepositWithoutItems) {
		t.Fatalf("expected ErrDepositWithoutItems, got %v", err)
	}
	// Delivery-only orders still accept a deposit.
	if err := engine.ValidateDeposit(10_00, 20_00, false); err != nil {
		t.Fatalf("delivery-only deposit should validate: %v", err)
	}
}
