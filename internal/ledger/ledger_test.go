package ledger

import (
	"testing"

	"balcaopos/backend/internal/domain"
)

func TestDepleteSingleLotGoesNegative(t *testing.T) {
	p := &domain.Product{
		ID:   "p1",
		Lots: []domain.ExpiryLot{{Date: "10/10/2025", Quantity: 5}},
	}

	DepleteForSale(p, 7)

	if len(p.Lots) != 1 {
		t.Fatalf("expected lot list untouched, got %d lots", len(p.Lots))
	}
	if p.Lots[0].Quantity != -2 {
		t.Fatalf("expected quantity -2, got %d", p.Lots[0].Quantity)
	}
	if p.PendingSales != 0 {
		t.Fatalf("single-lot depletion must not touch pending sales")
	}
}

func TestDepleteSingleLotExactZeroKeepsLot(t *testing.T) {
	p := &domain.Product{
		Lots: []domain.ExpiryLot{{Date: "10/10/2025", Quantity: 3}},
	}

	DepleteForSale(p, 3)

	if len(p.Lots) != 1 || p.Lots[0].Quantity != 0 {
		t.Fatalf("zeroed lot must be kept for audit, got %+v", p.Lots)
	}
}

func TestDepleteMultiLotAccumulatesPending(t *testing.T) {
	p := &domain.Product{
		Lots: []domain.ExpiryLot{
			{Date: "10/10/2025", Quantity: 4},
			{Date: "20/11/2025", Quantity: 6},
		},
	}

	DepleteForSale(p, 3)
	DepleteForSale(p, 2)

	if p.Lots[0].Quantity != 4 || p.Lots[1].Quantity != 6 {
		t.Fatalf("multi-lot depletion must leave lot quantities untouched, got %+v", p.Lots)
	}
	if p.PendingSales != 5 {
		t.Fatalf("expected pending sales 5, got %d", p.PendingSales)
	}
}

func TestDepleteZeroLotsCreatesNegativeRecord(t *testing.T) {
	p := &domain.Product{ID: "p1"}

	DepleteForSale(p, 4)

	if len(p.Lots) != 1 {
		t.Fatalf("expected one sentinel lot, got %d", len(p.Lots))
	}
	if p.Lots[0].Date != domain.LotDateNoStock {
		t.Fatalf("expected NO_STOCK sentinel date, got %q", p.Lots[0].Date)
	}
	if p.Lots[0].Quantity != -4 {
		t.Fatalf("expected quantity -4, got %d", p.Lots[0].Quantity)
	}
}

func TestTotalStockMayBeNegative(t *testing.T) {
	p := &domain.Product{
		Lots: []domain.ExpiryLot{
			{Date: "10/10/2025", Quantity: 2},
			{Date: domain.LotDateNoStock, Quantity: -5},
		},
	}
	if got := TotalStock(p); got != -3 {
		t.Fatalf("expected total -3, got %d", got)
	}
}

func TestResetPendingSales(t *testing.T) {
	p := &domain.Product{PendingSales: 9}
	if cleared := ResetPendingSales(p); cleared != 9 {
		t.Fatalf("expected cleared 9, got %d", cleared)
	}
	if p.PendingSales != 0 {
		t.Fatalf("counter should be zero after reset")
	}
}

func TestStats(t *testing.T) {
	products := []domain.Product{
		{Lots: []domain.ExpiryLot{{Quantity: 10}}},
		{Lots: []domain.ExpiryLot{{Quantity: -2}}},
		{Lots: []domain.ExpiryLot{{Quantity: 0}}},
		{Lots: []domain.ExpiryLot{{Quantity: 3}, {Quantity: 1}}, PendingSales: 4},
	}

	stats := Stats(products)
	if stats.TotalProducts != 4 {
		t.Fatalf("expected 4 products, got %d", stats.TotalProducts)
	}
	if stats.WithStock != 2 || stats.NegativeStock != 1 || stats.OutOfStock != 1 {
		t.Fatalf("unexpected stock buckets: %+v", stats)
	}
	if stats.WithPendingSales != 1 || stats.TotalPendingSales != 4 {
		t.Fatalf("unexpected pending stats: %+v", stats)
	}
}
