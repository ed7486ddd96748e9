// Package ledger applies sale quantities to a product's expiry lots.
//
// Depletion never fails and never clamps: every outcome (zero stock,
// negative stock, pending reconciliation) is a representable state the
// operator can see and fix, not an error.
package ledger

import "balcaopos/backend/internal/domain"

// DepleteForSale applies quantitySold to the product's lots, in place.
//
// Policy by lot count:
//   - exactly one lot: subtract directly; negative results are kept so
//     oversold single-batch stock stays visible.
//   - more than one lot: which lot to draw from is ambiguous, so lots are
//     left untouched and the product's pending-sales counter accumulates
//     the sold quantity until the operator reconciles stock manually.
//   - zero lots: append a NO_STOCK lot with negative quantity so the sale
//     is recorded rather than silently dropped.
func DepleteForSale(p *domain.Product, quantitySold int) {
	switch len(p.Lots) {
	case 1:
		p.Lots[0].Quantity -= quantitySold
	case 0:
		p.Lots = append(p.Lots, domain.ExpiryLot{
			Date:     domain.LotDateNoStock,
			Quantity: -quantitySold,
		})
	default:
		p.PendingSales += quantitySold
	}
}

// TotalStock sums all lot quantities. The result may be negative.
func TotalStock(p *domain.Product) int {
	total := 0
	for _, lot := range p.Lots {
		total += lot.Quantity
	}
	return total
}

// ResetPendingSales clears the pending-sales counter after a manual stock
// reconciliation. Returns the value that was cleared.
func ResetPendingSales(p *domain.Product) int {
	cleared := p.PendingSales
	p.PendingSales = 0
	return cleared
}

// Stats aggregates stock health across the catalog.
func Stats(products []domain.Product) domain.InventoryStats {
	stats := domain.InventoryStats{TotalProducts: len(products)}
	for i := range products {
		total := TotalStock(&products[i])
		switch {
		case total > 0:
			stats.WithStock++
		case total < 0:
			stats.NegativeStock++
		default:
			stats.OutOfStock++
		}
		if products[i].PendingSales > 0 {
			stats.WithPendingSales++
			stats.TotalPendingSales += products[i].PendingSales
		}
	}
	return stats
}
