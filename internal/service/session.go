package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"balcaopos/backend/internal/domain"
	"balcaopos/backend/internal/ledger"
	"balcaopos/backend/internal/metrics"
	"balcaopos/backend/internal/sale"
	"balcaopos/backend/internal/store"
	"balcaopos/backend/internal/xid"
)

const defaultTerminalID = "terminal-1"

var oneHundred = decimal.NewFromInt(100)

// session returns the terminal's live session, rehydrating it from the
// draft cache when the terminal is seen for the first time. Caller must
// hold s.mu.
func (s *Service) session(ctx context.Context, terminalID string) *sale.Session {
	if sess, ok := s.sessions[terminalID]; ok {
		return sess
	}

	sess := sale.New(terminalID)
	if draft, found, err := s.drafts.Get(ctx, terminalID); err != nil {
		log.Printf("[service] WARN: draft restore failed terminal=%s: %v", terminalID, err)
	} else if found {
		sess.Restore(*draft)
		log.Printf("[service] restored sale draft terminal=%s lines=%d", terminalID, len(draft.Lines))
	}
	s.sessions[terminalID] = sess
	return sess
}

// saveDraft persists the session snapshot so a crashed or closed terminal
// can pick the sale back up. Failures are logged, never surfaced.
func (s *Service) saveDraft(ctx context.Context, terminalID string, sess *sale.Session) {
	if sess.Empty() {
		if err := s.drafts.Delete(ctx, terminalID); err != nil {
			log.Printf("[service] WARN: draft delete failed terminal=%s: %v", terminalID, err)
		}
		return
	}
	view := sess.View()
	if err := s.drafts.Set(ctx, terminalID, &view, s.draftTTL); err != nil {
		log.Printf("[service] WARN: draft save failed terminal=%s: %v", terminalID, err)
		return
	}
	metrics.DraftSaves.Inc()
}

func normalizeTerminalID(terminalID string) string {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return defaultTerminalID
	}
	return terminalID
}

func (s *Service) SessionView(ctx context.Context, terminalID string) (domain.SaleSessionView, error) {
	terminalID = normalizeTerminalID(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.session(ctx, terminalID).View(), nil
}

// AddItem puts quantity units of the product into the terminal's cart.
// The product is looked up fresh so the cart caches current name and price.
func (s *Service) AddItem(ctx context.Context, req domain.AddItemRequest) (domain.SaleSessionView, error) {
	terminalID := normalizeTerminalID(req.TerminalID)
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil && !isNotFound(err) {
		return domain.SaleSessionView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(ctx, terminalID)
	if err := sess.AddItem(product, req.Quantity); err != nil {
		return domain.SaleSessionView{}, err
	}
	s.saveDraft(ctx, terminalID, sess)
	return sess.View(), nil
}

func (s *Service) ChangeQuantity(ctx context.Context, terminalID string, productID string, delta int) (domain.SaleSessionView, error) {
	terminalID = normalizeTerminalID(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(ctx, terminalID)
	sess.ChangeQuantity(productID, delta)
	s.saveDraft(ctx, terminalID, sess)
	return sess.View(), nil
}

func (s *Service) RemoveItem(ctx context.Context, terminalID string, productID string) (domain.SaleSessionView, error) {
	terminalID = normalizeTerminalID(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(ctx, terminalID)
	sess.RemoveItem(productID)
	s.saveDraft(ctx, terminalID, sess)
	return sess.View(), nil
}

func (s *Service) SetDiscount(ctx context.Context, req domain.DiscountRequest) (domain.SaleSessionView, error) {
	terminalID := normalizeTerminalID(req.TerminalID)
	if req.Percent.LessThan(decimal.Zero) || req.Percent.GreaterThan(oneHundred) {
		return domain.SaleSessionView{}, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(ctx, terminalID)
	if err := sess.SetDiscountPercent(req.Percent); err != nil {
		return domain.SaleSessionView{}, err
	}
	s.saveDraft(ctx, terminalID, sess)
	return sess.View(), nil
}

func (s *Service) RemoveDiscount(ctx context.Context, terminalID string) (domain.SaleSessionView, error) {
	terminalID = normalizeTerminalID(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(ctx, terminalID)
	sess.RemoveDiscount()
	s.saveDraft(ctx, terminalID, sess)
	return sess.View(), nil
}

func (s *Service) AddPayment(ctx context.Context, req domain.PaymentRequest) (domain.SaleSessionView, error) {
	terminalID := normalizeTerminalID(req.TerminalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(ctx, terminalID)
	entry, err := sess.AddPayment(req.Method, req.Amount)
	if err != nil {
		return domain.SaleSessionView{}, err
	}
	metrics.PaymentsRecorded.WithLabelValues(string(entry.Method)).Inc()
	s.saveDraft(ctx, terminalID, sess)
	return sess.View(), nil
}

func (s *Service) RemovePayment(ctx context.Context, terminalID string, index int) (domain.SaleSessionView, error) {
	terminalID = normalizeTerminalID(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(ctx, terminalID)
	if err := sess.RemovePayment(index); err != nil {
		return domain.SaleSessionView{}, err
	}
	s.saveDraft(ctx, terminalID, sess)
	return sess.View(), nil
}

func (s *Service) ClearSession(ctx context.Context, terminalID string) (domain.SaleSessionView, error) {
	terminalID = normalizeTerminalID(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(ctx, terminalID)
	sess.Clear()
	s.saveDraft(ctx, terminalID, sess)
	return sess.View(), nil
}

// repoStockKeeper applies a confirmed sale's quantities to the catalog,
// one product at a time.
type repoStockKeeper struct {
	ctx  context.Context
	repo store.Repository
}

func (k repoStockKeeper) DepleteLine(productID string, quantity int) error {
	product, err := k.repo.GetProduct(k.ctx, productID)
	if err != nil {
		if isNotFound(err) {
			// Product removed mid-sale. The sale still happened; nothing
			// left to deplete.
			log.Printf("[ledger] product %s gone before depletion, skipping", productID)
			return nil
		}
		return err
	}
	ledger.DepleteForSale(product, quantity)
	if _, err := k.repo.ReplaceLots(k.ctx, product.ID, product.Lots, product.PendingSales); err != nil {
		return err
	}
	return nil
}

// ConfirmSale finalizes the terminal's sale: settlement check, stock
// depletion, then the sale record. A depletion failure aborts before any
// record is written; a record write failure is logged but does not undo
// the sale.
func (s *Service) ConfirmSale(ctx context.Context, terminalID string) (domain.ConfirmSaleResponse, error) {
	terminalID = normalizeTerminalID(terminalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(ctx, terminalID)
	record, err := sess.Confirm(xid.New("sale"), s.now(), repoStockKeeper{ctx: ctx, repo: s.repo})
	if err != nil {
		metrics.SaleConfirmFailures.Inc()
		return domain.ConfirmSaleResponse{}, err
	}

	if err := s.repo.CreateSaleRecord(ctx, record); err != nil {
		log.Printf("[service] WARN: sale %s completed but record not persisted: %v", record.ID, err)
	}

	metrics.SalesCompleted.Inc()
	revenue, _ := record.Total.Float64()
	metrics.SalesRevenue.Add(revenue)

	s.logAudit(ctx, "sale_confirm", "sale", record.ID, fmt.Sprintf("total=%s,payments=%d", record.Total, len(record.Payments)))
	s.saveDraft(ctx, terminalID, sess)

	return domain.ConfirmSaleResponse{
		Sale:    record,
		Receipt: renderReceipt(s.storeName, record),
	}, nil
}

// ExitSession implements the two-press exit guard: the first press only
// arms the exit, a second press inside the window clears the sale.
func (s *Service) ExitSession(ctx context.Context, terminalID string) (domain.ExitSessionResponse, error) {
	terminalID = normalizeTerminalID(terminalID)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	last, pressed := s.lastExitPress[terminalID]
	if !pressed || now.Sub(last) > exitConfirmWindow {
		s.lastExitPress[terminalID] = now
		return domain.ExitSessionResponse{
			Exited:        false,
			Message:       "press exit again to discard the sale",
			WindowSeconds: int(exitConfirmWindow / time.Second),
		}, nil
	}

	delete(s.lastExitPress, terminalID)
	sess := s.session(ctx, terminalID)
	sess.Clear()
	s.saveDraft(ctx, terminalID, sess)

	return domain.ExitSessionResponse{
		Exited:  true,
		Message: "sale discarded",
	}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
