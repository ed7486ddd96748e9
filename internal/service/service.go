package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"balcaopos/backend/internal/cache"
	"balcaopos/backend/internal/domain"
	"balcaopos/backend/internal/expiry"
	"balcaopos/backend/internal/ledger"
	"balcaopos/backend/internal/sale"
	"balcaopos/backend/internal/store"
	"balcaopos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// exitConfirmWindow is how long a first exit press stays armed before the
// terminal has to start over.
const exitConfirmWindow = 2 * time.Second

type Service struct {
	repo      store.Repository
	drafts    cache.DraftCache
	draftTTL  time.Duration
	storeName string

	// sessions holds one in-progress sale per terminal. All session access
	// goes through mu; sale.Session itself is not concurrency-safe.
	mu            sync.Mutex
	sessions      map[string]*sale.Session
	lastExitPress map[string]time.Time

	now func() time.Time
}

func New(repo store.Repository, drafts cache.DraftCache, draftTTL time.Duration, storeName string) *Service {
	if drafts == nil {
		drafts = cache.NoopDraftCache{}
	}
	if draftTTL < time.Minute {
		draftTTL = 4 * time.Hour
	}
	if storeName == "" {
		storeName = "Balcao POS"
	}

	return &Service{
		repo:          repo,
		drafts:        drafts,
		draftTTL:      draftTTL,
		storeName:     storeName,
		sessions:      make(map[string]*sale.Session),
		lastExitPress: make(map[string]time.Time),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// SearchProducts filters the catalog by case-insensitive substring over
// names and barcodes. An empty query returns everything.
func (s *Service) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return products, nil
	}

	matched := make([]domain.Product, 0, len(products))
	for _, product := range products {
		if strings.Contains(strings.ToLower(product.Name), query) {
			matched = append(matched, product)
			continue
		}
		for _, barcode := range product.Barcodes {
			if strings.Contains(barcode, query) {
				matched = append(matched, product)
				break
			}
		}
	}
	return matched, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) FindProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	product, err := s.repo.FindProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Price.LessThanOrEqual(decimal.Zero) {
		return domain.Product{}, store.ErrInvalidInput
	}
	barcodes, err := normalizeBarcodes(req.Barcodes)
	if err != nil {
		return domain.Product{}, err
	}
	if err := validateLots(req.Lots); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:       xid.New("prod"),
		Name:     req.Name,
		Price:    req.Price,
		Barcodes: barcodes,
		ImageURL: strings.TrimSpace(req.ImageURL),
		Lots:     req.Lots,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%s", created.Name, created.Price))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Price != nil {
		if req.Price.LessThanOrEqual(decimal.Zero) {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Price = *req.Price
	}
	if req.Barcodes != nil {
		barcodes, err := normalizeBarcodes(*req.Barcodes)
		if err != nil {
			return domain.Product{}, err
		}
		updated.Barcodes = barcodes
	}
	if req.ImageURL != nil {
		updated.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	if req.Lots != nil {
		if err := validateLots(*req.Lots); err != nil {
			return domain.Product{}, err
		}
		updated.Lots = *req.Lots
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("name=%s,price=%s,lots=%d", saved.Name, saved.Price, len(saved.Lots)))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

// ResetPendingSales clears a product's pending-sales counter after the
// operator has reconciled its lots by hand.
func (s *Service) ResetPendingSales(ctx context.Context, productID string) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}

	cleared := ledger.ResetPendingSales(product)
	saved, err := s.repo.ReplaceLots(ctx, product.ID, product.Lots, product.PendingSales)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "pending_sales_reset", "product", saved.ID, fmt.Sprintf("cleared=%d", cleared))
	return *saved, nil
}

// ExpiryAlerts classifies every lot in the catalog against today's date.
func (s *Service) ExpiryAlerts(ctx context.Context) (domain.ExpiryAlertResponse, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.ExpiryAlertResponse{}, err
	}
	return expiry.Scan(products, s.now()), nil
}

func (s *Service) InventoryStats(ctx context.Context) (domain.InventoryStats, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.InventoryStats{}, err
	}
	return ledger.Stats(products), nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func normalizeBarcodes(barcodes []string) ([]string, error) {
	normalized := make([]string, 0, len(barcodes))
	seen := make(map[string]struct{}, len(barcodes))
	for _, barcode := range barcodes {
		barcode = strings.TrimSpace(barcode)
		if barcode == "" {
			return nil, store.ErrInvalidInput
		}
		if _, dup := seen[barcode]; dup {
			continue
		}
		seen[barcode] = struct{}{}
		normalized = append(normalized, barcode)
	}
	return normalized, nil
}

// validateLots accepts DD/MM/YYYY dates and the no-stock sentinel. Quantities
// may be any integer; negative lots are a legitimate oversold state.
func validateLots(lots []domain.ExpiryLot) error {
	for _, lot := range lots {
		if lot.Date == domain.LotDateNoStock {
			continue
		}
		if _, err := time.Parse("02/01/2006", lot.Date); err != nil {
			return store.ErrInvalidInput
		}
	}
	return nil
}
