package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"balcaopos/backend/internal/domain"
	"balcaopos/backend/internal/store"
	"balcaopos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, barcodes, image_url, lots, pending_sales, created_at, updated_at
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, barcodes, image_url, lots, pending_sales, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, store.ErrInvalidInput
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, barcodes, image_url, lots, pending_sales, created_at, updated_at
		FROM products
		WHERE barcodes ? $1
	`, barcode)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.Price.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}

	barcodesJSON, lotsJSON, err := marshalProductBlobs(product)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, barcodes, image_url, lots, pending_sales, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, product.ID, product.Name, product.Price, barcodesJSON, product.ImageURL, lotsJSON,
		product.PendingSales, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.Price.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrInvalidInput
	}

	barcodesJSON, lotsJSON, err := marshalProductBlobs(product)
	if err != nil {
		return nil, err
	}

	product.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price = $3, barcodes = $4, image_url = $5, lots = $6, pending_sales = $7, updated_at = $8
		WHERE id = $1
	`, product.ID, product.Name, product.Price, barcodesJSON, product.ImageURL, lotsJSON,
		product.PendingSales, product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ReplaceLots(ctx context.Context, productID string, lots []domain.ExpiryLot, pendingSales int) (*domain.Product, error) {
	if lots == nil {
		lots = []domain.ExpiryLot{}
	}
	lotsJSON, err := json.Marshal(lots)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET lots = $2, pending_sales = $3, updated_at = now()
		WHERE id = $1
	`, productID, lotsJSON, pendingSales)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProduct(ctx, productID)
}

func (s *Store) CreateSaleRecord(ctx context.Context, record domain.SaleRecord) error {
	if record.ID == "" || len(record.Items) == 0 {
		return store.ErrInvalidInput
	}

	itemsJSON, err := json.Marshal(record.Items)
	if err != nil {
		return err
	}
	paymentsJSON, err := json.Marshal(record.Payments)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (
			id, ts, items, subtotal, discount_amount, discount_percent,
			total, payments, total_paid, total_change
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, record.ID, record.Timestamp, itemsJSON, record.Subtotal, record.DiscountAmount,
		record.DiscountPercent, record.Total, paymentsJSON, record.TotalPaid, record.TotalChange)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) GetSaleRecord(ctx context.Context, id string) (*domain.SaleRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ts, items, subtotal, discount_amount, discount_percent,
			total, payments, total_paid, total_change
		FROM sales
		WHERE id = $1
	`, id)
	record, err := scanSaleRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

func (s *Store) ListSaleRecords(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SaleRecord, error) {
	if limit < 1 {
		limit = 500
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(24 * time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, items, subtotal, discount_amount, discount_percent,
			total, payments, total_paid, total_change
		FROM sales
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.SaleRecord, 0, limit)
	for rows.Next() {
		record, err := scanSaleRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(24 * time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleSeller
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(
		&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var barcodesRaw, lotsRaw []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &barcodesRaw, &p.ImageURL, &lotsRaw,
		&p.PendingSales, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(barcodesRaw) > 0 {
		if err := json.Unmarshal(barcodesRaw, &p.Barcodes); err != nil {
			return nil, err
		}
	}
	if len(lotsRaw) > 0 {
		if err := json.Unmarshal(lotsRaw, &p.Lots); err != nil {
			return nil, err
		}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func scanSaleRecord(row rowScanner) (*domain.SaleRecord, error) {
	var record domain.SaleRecord
	var itemsRaw, paymentsRaw []byte
	if err := row.Scan(&record.ID, &record.Timestamp, &itemsRaw, &record.Subtotal,
		&record.DiscountAmount, &record.DiscountPercent, &record.Total, &paymentsRaw,
		&record.TotalPaid, &record.TotalChange); err != nil {
		return nil, err
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &record.Items); err != nil {
			return nil, err
		}
	}
	if len(paymentsRaw) > 0 {
		if err := json.Unmarshal(paymentsRaw, &record.Payments); err != nil {
			return nil, err
		}
	}
	record.Timestamp = record.Timestamp.UTC()
	return &record, nil
}

func marshalProductBlobs(product domain.Product) ([]byte, []byte, error) {
	barcodes := product.Barcodes
	if barcodes == nil {
		barcodes = []string{}
	}
	barcodesJSON, err := json.Marshal(barcodes)
	if err != nil {
		return nil, nil, err
	}
	lots := product.Lots
	if lots == nil {
		lots = []domain.ExpiryLot{}
	}
	lotsJSON, err := json.Marshal(lots)
	if err != nil {
		return nil, nil, err
	}
	return barcodesJSON, lotsJSON, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
