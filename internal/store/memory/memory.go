package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"balcaopos/backend/internal/domain"
	"balcaopos/backend/internal/store"
	"balcaopos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	salesByID       map[string]domain.SaleRecord
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	sellerPwd := envOr("SEED_SELLER_PASSWORD", "seller123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SELLER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"seller", sellerPwd, domain.RoleSeller},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// lotDate formats a date offset from today in the DD/MM/YYYY layout the
// catalog stores.
func lotDate(daysFromNow int) string {
	d := time.Now().AddDate(0, 0, daysFromNow)
	return fmt.Sprintf("%02d/%02d/%04d", d.Day(), int(d.Month()), d.Year())
}

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("[memory-store] bad seed price %q: %v", s, err)
	}
	return d
}

// NewSeeded builds a store preloaded with a small neighborhood-market
// catalog. Lot dates are relative to today so the expiry alerts have
// something to show out of the box.
func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-arroz-01", Name: "Arroz 5kg", Price: price("24.90"), Barcodes: []string{"7891234100011"},
			Lots: []domain.ExpiryLot{{Date: lotDate(180), Quantity: 40}}},
		{ID: "prod-feijao-01", Name: "Feijao Carioca 1kg", Price: price("8.50"), Barcodes: []string{"7891234100028"},
			Lots: []domain.ExpiryLot{{Date: lotDate(120), Quantity: 60}}},
		{ID: "prod-leite-01", Name: "Leite Integral 1L", Price: price("5.79"), Barcodes: []string{"7891234100035"},
			Lots: []domain.ExpiryLot{{Date: lotDate(5), Quantity: 24}, {Date: lotDate(30), Quantity: 48}}},
		{ID: "prod-pao-01", Name: "Pao de Forma", Price: price("7.20"), Barcodes: []string{"7891234100042"},
			Lots: []domain.ExpiryLot{{Date: lotDate(2), Quantity: 10}}},
		{ID: "prod-cafe-01", Name: "Cafe Torrado 500g", Price: price("16.90"), Barcodes: []string{"7891234100059"},
			Lots: []domain.ExpiryLot{{Date: lotDate(240), Quantity: 30}}},
		{ID: "prod-acucar-01", Name: "Acucar Cristal 1kg", Price: price("4.30"), Barcodes: []string{"7891234100066"},
			Lots: []domain.ExpiryLot{{Date: lotDate(365), Quantity: 80}}},
		{ID: "prod-iogurte-01", Name: "Iogurte Natural 170g", Price: price("3.40"), Barcodes: []string{"7891234100073"},
			Lots: []domain.ExpiryLot{{Date: lotDate(-1), Quantity: 6}, {Date: lotDate(12), Quantity: 20}}},
		{ID: "prod-oleo-01", Name: "Oleo de Soja 900ml", Price: price("7.80"), Barcodes: []string{"7891234100080"},
			Lots: []domain.ExpiryLot{{Date: lotDate(300), Quantity: 36}}},
		{ID: "prod-refri-01", Name: "Refrigerante 2L", Price: price("9.50"), Barcodes: []string{"7891234100097"},
			Lots: []domain.ExpiryLot{{Date: lotDate(90), Quantity: 45}}},
		{ID: "prod-sabao-01", Name: "Sabao em Po 800g", Price: price("12.60"), Barcodes: []string{"7891234100103"},
			Lots: nil},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		productMap[p.ID] = p
	}

	return &Store{
		products:        productMap,
		salesByID:       make(map[string]domain.SaleRecord),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

// NewEmpty builds a store with seed users but no catalog. Used by tests.
func NewEmpty() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		salesByID:       make(map[string]domain.SaleRecord),
		auditLogs:       make([]domain.AuditLog, 0, 16),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := cloneProduct(product)
	return &copyProduct, nil
}

func (s *Store) FindProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, product := range s.products {
		if slices.Contains(product.Barcodes, barcode) {
			copyProduct := cloneProduct(product)
			return &copyProduct, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.Price.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrDuplicate
	}
	for _, barcode := range product.Barcodes {
		for _, existing := range s.products {
			if slices.Contains(existing.Barcodes, barcode) {
				return nil, store.ErrDuplicate
			}
		}
	}

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = cloneProduct(product)
	created := cloneProduct(product)
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.Price.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = cloneProduct(product)
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ReplaceLots(_ context.Context, productID string, lots []domain.ExpiryLot, pendingSales int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.Lots = make([]domain.ExpiryLot, len(lots))
	copy(product.Lots, lots)
	product.PendingSales = pendingSales
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) CreateSaleRecord(_ context.Context, record domain.SaleRecord) error {
	if record.ID == "" || len(record.Items) == 0 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[record.ID]; exists {
		return store.ErrDuplicate
	}
	s.salesByID[record.ID] = cloneSaleRecord(record)
	return nil
}

func (s *Store) GetSaleRecord(_ context.Context, id string) (*domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyRecord := cloneSaleRecord(record)
	return &copyRecord, nil
}

func (s *Store) ListSaleRecords(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SaleRecord, 0, len(s.salesByID))
	for _, record := range s.salesByID {
		if !from.IsZero() && record.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !record.Timestamp.Before(to) {
			continue
		}
		result = append(result, cloneSaleRecord(record))
	}

	slices.SortFunc(result, func(a, b domain.SaleRecord) int {
		if a.Timestamp.Equal(b.Timestamp) {
			return cmpString(b.ID, a.ID)
		}
		if a.Timestamp.After(b.Timestamp) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrDuplicate
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleSeller
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneProduct(src domain.Product) domain.Product {
	dup := src
	barcodes := make([]string, len(src.Barcodes))
	copy(barcodes, src.Barcodes)
	dup.Barcodes = barcodes
	lots := make([]domain.ExpiryLot, len(src.Lots))
	copy(lots, src.Lots)
	dup.Lots = lots
	return dup
}

func cloneSaleRecord(src domain.SaleRecord) domain.SaleRecord {
	dup := src
	items := make([]domain.SaleItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	payments := make([]domain.PaymentEntry, len(src.Payments))
	copy(payments, src.Payments)
	dup.Payments = payments
	return dup
}
