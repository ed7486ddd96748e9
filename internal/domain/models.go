package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog entity. Stock is tracked per expiry lot; the
// displayed total is always the sum of lot quantities and may be negative.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Barcodes     []string        `json:"barcodes"`
	ImageURL     string          `json:"image_url,omitempty"`
	Lots         []ExpiryLot     `json:"lots"`
	PendingSales int             `json:"pending_sales"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ExpiryLot is one batch of stock tied to a single expiry date. Date is a
// DD/MM/YYYY string, or LotDateNoStock when a sale ran against a product
// that had no lots at all. Quantity is signed: oversold stock stays visible
// as a negative lot instead of being clamped or removed.
type ExpiryLot struct {
	Date     string `json:"date"`
	Quantity int    `json:"quantity"`
}

// LotDateNoStock marks a lot created to record a sale against a product
// with zero registered lots.
const LotDateNoStock = "NO_STOCK"

type ProductCreateRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Barcodes []string        `json:"barcodes"`
	ImageURL string          `json:"image_url,omitempty"`
	Lots     []ExpiryLot     `json:"lots,omitempty"`
}

type ProductUpdateRequest struct {
	Name     *string          `json:"name,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Barcodes *[]string        `json:"barcodes,omitempty"`
	ImageURL *string          `json:"image_url,omitempty"`
	Lots     *[]ExpiryLot     `json:"lots,omitempty"`
}

// CartLine is one entry of an in-progress sale. Display fields are cached
// from the product at add time so the cart survives concurrent catalog edits.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageURL  string          `json:"image_url,omitempty"`
	Quantity  int             `json:"quantity"`
}

func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type PaymentMethod string

const (
	PaymentDebit   PaymentMethod = "debit"
	PaymentCredit  PaymentMethod = "credit"
	PaymentPix     PaymentMethod = "pix"
	PaymentCash    PaymentMethod = "cash"
	PaymentVoucher PaymentMethod = "voucher"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentDebit, PaymentCredit, PaymentPix, PaymentCash, PaymentVoucher:
		return true
	}
	return false
}

func (m PaymentMethod) Label() string {
	switch m {
	case PaymentDebit:
		return "Debit"
	case PaymentCredit:
		return "Credit"
	case PaymentPix:
		return "PIX"
	case PaymentCash:
		return "Cash"
	case PaymentVoucher:
		return "Voucher"
	}
	return string(m)
}

// PaymentEntry records one partial payment. Amount is what was applied
// toward the total (capped at the remaining balance); Change is non-zero
// only for cash tendered above the remaining balance.
type PaymentEntry struct {
	Method PaymentMethod   `json:"method"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
	Change decimal.Decimal `json:"change"`
}

// SaleItem is a cart line frozen into a completed sale, with its line total.
type SaleItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

// SaleRecord is the immutable snapshot emitted once per completed sale.
type SaleRecord struct {
	ID              string          `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	Items           []SaleItem      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Total           decimal.Decimal `json:"total"`
	Payments        []PaymentEntry  `json:"payments"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	TotalChange     decimal.Decimal `json:"total_change"`
}

// SaleSessionView is the render snapshot returned after every cart or
// payment mutation.
type SaleSessionView struct {
	TerminalID      string          `json:"terminal_id"`
	Lines           []CartLine      `json:"lines"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Total           decimal.Decimal `json:"total"`
	Payments        []PaymentEntry  `json:"payments"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	Remaining       decimal.Decimal `json:"remaining"`
	Settled         bool            `json:"settled"`
}

type AddItemRequest struct {
	TerminalID string `json:"terminal_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
}

type QuantityDeltaRequest struct {
	TerminalID string `json:"terminal_id"`
	Delta      int    `json:"delta"`
}

type DiscountRequest struct {
	TerminalID string          `json:"terminal_id"`
	Percent    decimal.Decimal `json:"percent"`
}

type PaymentRequest struct {
	TerminalID string          `json:"terminal_id"`
	Method     PaymentMethod   `json:"method"`
	Amount     decimal.Decimal `json:"amount"`
}

type ConfirmSaleResponse struct {
	Sale    SaleRecord `json:"sale"`
	Receipt string     `json:"receipt"`
}

type ExitSessionResponse struct {
	Exited        bool   `json:"exited"`
	Message       string `json:"message"`
	WindowSeconds int    `json:"window_seconds,omitempty"`
}

// ExpiryAlert pairs a product and one of its lots with the lot's
// classification.
type ExpiryAlert struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	LotDate     string `json:"lot_date"`
	Quantity    int    `json:"quantity"`
	Status      string `json:"status"`
	DaysLeft    int    `json:"days_left"`
	Message     string `json:"message"`
}

type ExpiryAlertResponse struct {
	Expired  []ExpiryAlert `json:"expired"`
	Expiring []ExpiryAlert `json:"expiring"`
	Summary  string        `json:"summary,omitempty"`
}

// InventoryStats aggregates stock health across the catalog.
type InventoryStats struct {
	TotalProducts     int `json:"total_products"`
	WithStock         int `json:"with_stock"`
	OutOfStock        int `json:"out_of_stock"`
	NegativeStock     int `json:"negative_stock"`
	WithPendingSales  int `json:"with_pending_sales"`
	TotalPendingSales int `json:"total_pending_sales"`
}

type SalesReport struct {
	Filter        string          `json:"filter"`
	Count         int             `json:"count"`
	Revenue       decimal.Decimal `json:"revenue"`
	ItemsSold     int             `json:"items_sold"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
	Sales         []SaleRecord    `json:"sales"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type SellerCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SellerUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type HardwareReceiptRequest struct {
	SaleID string `json:"sale_id"`
}

type HardwareReceiptResponse struct {
	SaleID       string `json:"sale_id"`
	EscposBase64 string `json:"escpos_base64"`
	PreviewText  string `json:"preview_text"`
	FileName     string `json:"file_name"`
}

const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
)
