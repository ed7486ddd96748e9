// Package sale holds the state of one in-progress sale: the cart lines,
// the discount, and the partial payments accumulated toward settlement.
package sale

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"balcaopos/backend/internal/domain"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInvalidPayment    = errors.New("invalid payment")
	ErrPaymentComplete   = errors.New("payment already complete")
	ErrPaymentIncomplete = errors.New("payment not complete")
	ErrNoSuchPayment     = errors.New("no payment at that index")
)

// settleEpsilon tolerates rounding noise when deciding whether the paid
// total matches the owed total: 0.01 currency units.
var settleEpsilon = decimal.New(1, -2)

var oneHundred = decimal.NewFromInt(100)

// StockKeeper is invoked once per cart line at confirmation. Implementations
// live outside this package (the catalog-backed ledger).
type StockKeeper interface {
	DepleteLine(productID string, quantity int) error
}

// Session is a single-owner, single-threaded sale in progress. It is not
// safe for concurrent use; the owning service serializes access.
type Session struct {
	terminalID      string
	lines           []domain.CartLine
	discountAmount  decimal.Decimal
	discountPercent decimal.Decimal
	payments        []domain.PaymentEntry
	totalPaid       decimal.Decimal
}

func New(terminalID string) *Session {
	return &Session{
		terminalID:      terminalID,
		discountAmount:  decimal.Zero,
		discountPercent: decimal.Zero,
		totalPaid:       decimal.Zero,
	}
}

// AddItem adds quantity units of the product to the cart. A line already
// holding this product accumulates the quantity instead of duplicating —
// repeated scans of the same item merge, point-of-sale convention.
// A nil product (stale reference) is a logged no-op.
func (s *Session) AddItem(p *domain.Product, quantity int) error {
	if p == nil {
		log.Printf("[sale] add ignored: unknown product")
		return nil
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	for i := range s.lines {
		if s.lines[i].ProductID == p.ID {
			s.lines[i].Quantity += quantity
			return nil
		}
	}

	s.lines = append(s.lines, domain.CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		ImageURL:  p.ImageURL,
		Quantity:  quantity,
	})
	return nil
}

// ChangeQuantity applies a signed delta to an existing line. A resulting
// quantity of zero or less removes the line. Unknown ids are a logged no-op.
func (s *Session) ChangeQuantity(productID string, delta int) {
	for i := range s.lines {
		if s.lines[i].ProductID != productID {
			continue
		}
		s.lines[i].Quantity += delta
		if s.lines[i].Quantity <= 0 {
			s.RemoveItem(productID)
		}
		return
	}
	log.Printf("[sale] quantity change ignored: product %s not in cart", productID)
}

// RemoveItem removes the line for productID. Removing an absent id is a
// no-op.
func (s *Session) RemoveItem(productID string) {
	kept := s.lines[:0]
	for _, line := range s.lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	s.lines = kept
}

// Clear empties the cart and drops discount and payment state together;
// neither survives a change to the cart's composition.
func (s *Session) Clear() {
	s.lines = nil
	s.discountAmount = decimal.Zero
	s.discountPercent = decimal.Zero
	s.resetPayments()
}

// SetDiscountPercent recomputes the absolute discount from the current
// subtotal. Any in-progress payments are dropped: the owed total changed,
// so prior allocations no longer apply.
func (s *Session) SetDiscountPercent(percent decimal.Decimal) error {
	if len(s.lines) == 0 {
		return ErrEmptyCart
	}
	s.discountPercent = percent
	s.discountAmount = s.Subtotal().Mul(percent).Div(oneHundred)
	s.resetPayments()
	return nil
}

// RemoveDiscount zeroes the discount and, like SetDiscountPercent, drops
// in-progress payments.
func (s *Session) RemoveDiscount() {
	s.discountAmount = decimal.Zero
	s.discountPercent = decimal.Zero
	s.resetPayments()
}

func (s *Session) resetPayments() {
	s.payments = nil
	s.totalPaid = decimal.Zero
}

// Subtotal sums unit price times quantity over all lines. Always recomputed,
// never cached.
func (s *Session) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.lines {
		total = total.Add(line.Total())
	}
	return total
}

// Total is the subtotal minus the absolute discount.
func (s *Session) Total() decimal.Decimal {
	return s.Subtotal().Sub(s.discountAmount)
}

// Remaining is what is still owed after the payments applied so far.
func (s *Session) Remaining() decimal.Decimal {
	return s.Total().Sub(s.totalPaid)
}

// Settled reports whether the paid total matches the owed total within the
// settlement epsilon.
func (s *Session) Settled() bool {
	if len(s.lines) == 0 {
		return false
	}
	return s.Total().Sub(s.totalPaid).Abs().LessThanOrEqual(settleEpsilon)
}

// AddPayment applies a tendered amount toward the remaining balance. The
// applied amount is capped at the balance; only cash produces change for
// the excess, every other method is silently capped. Rejected once the
// balance is already within the epsilon.
func (s *Session) AddPayment(method domain.PaymentMethod, tendered decimal.Decimal) (domain.PaymentEntry, error) {
	if len(s.lines) == 0 {
		return domain.PaymentEntry{}, ErrEmptyCart
	}
	if !method.Valid() || tendered.LessThanOrEqual(decimal.Zero) {
		return domain.PaymentEntry{}, ErrInvalidPayment
	}

	remaining := s.Remaining()
	if remaining.LessThanOrEqual(settleEpsilon) {
		return domain.PaymentEntry{}, ErrPaymentComplete
	}

	applied := decimal.Min(tendered, remaining)
	change := decimal.Zero
	if method == domain.PaymentCash {
		change = decimal.Max(decimal.Zero, tendered.Sub(remaining))
	}

	entry := domain.PaymentEntry{
		Method: method,
		Label:  method.Label(),
		Amount: applied,
		Change: change,
	}
	s.payments = append(s.payments, entry)
	s.totalPaid = s.totalPaid.Add(applied)
	return entry, nil
}

// RemovePayment deletes the entry at index and gives back its applied
// amount, for correcting mis-entries before confirmation.
func (s *Session) RemovePayment(index int) error {
	if index < 0 || index >= len(s.payments) {
		return ErrNoSuchPayment
	}
	s.totalPaid = s.totalPaid.Sub(s.payments[index].Amount)
	s.payments = append(s.payments[:index], s.payments[index+1:]...)
	return nil
}

// Confirm finalizes the sale: it requires settlement, runs stock depletion
// for every line, then freezes a SaleRecord and resets the session. If the
// stock keeper fails (or panics), the session is left untouched so the
// operator can retry.
func (s *Session) Confirm(id string, now time.Time, keeper StockKeeper) (domain.SaleRecord, error) {
	if !s.Settled() {
		return domain.SaleRecord{}, ErrPaymentIncomplete
	}

	if err := s.depleteAll(keeper); err != nil {
		return domain.SaleRecord{}, fmt.Errorf("stock update failed: %w", err)
	}

	record := s.snapshot(id, now)
	s.Clear()
	return record, nil
}

// depleteAll shields confirmation from a misbehaving keeper: current
// implementations cannot fail, but a panic here must abort the sale, not
// crash the terminal.
func (s *Session) depleteAll(keeper StockKeeper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stock keeper panic: %v", r)
		}
	}()
	for _, line := range s.lines {
		if err := keeper.DepleteLine(line.ProductID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) snapshot(id string, now time.Time) domain.SaleRecord {
	items := make([]domain.SaleItem, 0, len(s.lines))
	for _, line := range s.lines {
		items = append(items, domain.SaleItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Total:     line.Total(),
		})
	}

	payments := make([]domain.PaymentEntry, len(s.payments))
	copy(payments, s.payments)

	totalChange := decimal.Zero
	for _, p := range payments {
		totalChange = totalChange.Add(p.Change)
	}

	return domain.SaleRecord{
		ID:              id,
		Timestamp:       now,
		Items:           items,
		Subtotal:        s.Subtotal(),
		DiscountAmount:  s.discountAmount,
		DiscountPercent: s.discountPercent,
		Total:           s.Total(),
		Payments:        payments,
		TotalPaid:       s.totalPaid,
		TotalChange:     totalChange,
	}
}

// Empty reports whether the session has no lines and no payments.
func (s *Session) Empty() bool {
	return len(s.lines) == 0 && len(s.payments) == 0
}

// View builds the render snapshot handed back after every mutation.
func (s *Session) View() domain.SaleSessionView {
	lines := make([]domain.CartLine, len(s.lines))
	copy(lines, s.lines)
	payments := make([]domain.PaymentEntry, len(s.payments))
	copy(payments, s.payments)

	return domain.SaleSessionView{
		TerminalID:      s.terminalID,
		Lines:           lines,
		Subtotal:        s.Subtotal(),
		DiscountAmount:  s.discountAmount,
		DiscountPercent: s.discountPercent,
		Total:           s.Total(),
		Payments:        payments,
		TotalPaid:       s.totalPaid,
		Remaining:       s.Remaining(),
		Settled:         s.Settled(),
	}
}

// Restore rehydrates a session from a draft snapshot, replacing any current
// state. Used when a terminal resumes an autosaved draft.
func (s *Session) Restore(view domain.SaleSessionView) {
	s.lines = make([]domain.CartLine, len(view.Lines))
	copy(s.lines, view.Lines)
	s.discountAmount = view.DiscountAmount
	s.discountPercent = view.DiscountPercent
	s.payments = make([]domain.PaymentEntry, len(view.Payments))
	copy(s.payments, view.Payments)
	s.totalPaid = view.TotalPaid
}
