package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"balcaopos/backend/internal/cache"
	"balcaopos/backend/internal/domain"
	"balcaopos/backend/internal/service"
	"balcaopos/backend/internal/store/memory"
)

// newTestAPI builds a full API with the seeded in-memory store, real
// AuthManager and real Service so handler tests exercise the complete
// request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopDraftCache{}, time.Hour, "test-store")
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

type sessionEnvelope struct {
	Session domain.SaleSessionView `json:"session"`
}

// doJSON fires an authenticated JSON request against the API and decodes
// the response body into dest (when dest is non-nil).
func doJSON(t *testing.T, api *API, method, path, token, csrf string, payload any, dest any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if dest != nil && rec.Code < 300 {
		if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{
		Username: "admin",
		Password: "wrongpassword",
	}, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_SearchFilters(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	var body struct {
		Products []domain.Product `json:"products"`
	}
	rec := doJSON(t, api, http.MethodGet, "/api/v1/products?q=arroz", token, "", nil, &body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if len(body.Products) != 1 {
		t.Fatalf("expected 1 match for arroz, got %d", len(body.Products))
	}
	if body.Products[0].Name != "Arroz 5kg" {
		t.Fatalf("unexpected match %s", body.Products[0].Name)
	}
}

func TestHandleBarcodeLookup(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	var body struct {
		Product domain.Product `json:"product"`
	}
	rec := doJSON(t, api, http.MethodGet, "/api/v1/products/barcode/7891234100035", token, "", nil, &body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if body.Product.Name != "Leite Integral 1L" {
		t.Fatalf("unexpected product %s", body.Product.Name)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/products/barcode/0000000000000", token, "", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown barcode, got %d", rec.Code)
	}
}

func TestSellerCannotCreateProduct(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Name:  "Produto Proibido",
		Price: decimal.RequireFromString("1.00"),
	}, nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestSellerCannotManageProductsByPath(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/products/prod-arroz-01", token, "", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller on admin route, got %d", rec.Code)
	}
}

func TestSaleFlowThroughAPI(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)
	csrf := fetchCSRFToken(t, api)

	var env sessionEnvelope
	rec := doJSON(t, api, http.MethodPost, "/api/v1/sale/items", token, csrf, domain.AddItemRequest{
		TerminalID: "caixa-9",
		ProductID:  "prod-arroz-01",
		Quantity:   2,
	}, &env)
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if !env.Session.Subtotal.Equal(decimal.RequireFromString("49.80")) {
		t.Fatalf("expected subtotal 49.80, got %s", env.Session.Subtotal)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/sale/payments", token, csrf, domain.PaymentRequest{
		TerminalID: "caixa-9",
		Method:     domain.PaymentPix,
		Amount:     decimal.RequireFromString("49.80"),
	}, &env)
	if rec.Code != http.StatusOK {
		t.Fatalf("add payment: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if !env.Session.Settled {
		t.Fatalf("expected session settled after full payment")
	}

	var confirm domain.ConfirmSaleResponse
	rec = doJSON(t, api, http.MethodPost, "/api/v1/sale/confirm", token, csrf, terminalRequest{TerminalID: "caixa-9"}, &confirm)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if !confirm.Sale.Total.Equal(decimal.RequireFromString("49.80")) {
		t.Fatalf("expected sale total 49.80, got %s", confirm.Sale.Total)
	}
	if confirm.Receipt == "" {
		t.Fatalf("expected a rendered receipt")
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/sale?terminal=caixa-9", token, "", nil, &env)
	if rec.Code != http.StatusOK {
		t.Fatalf("session view: expected 200, got %d", rec.Code)
	}
	if len(env.Session.Lines) != 0 {
		t.Fatalf("expected empty cart after confirm, got %d lines", len(env.Session.Lines))
	}

	// Depletion: the single arroz lot loses the two sold units.
	adminToken := loginAsAdmin(t, api)
	var productBody struct {
		Product domain.Product `json:"product"`
	}
	rec = doJSON(t, api, http.MethodGet, "/api/v1/products/prod-arroz-01", adminToken, "", nil, &productBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: expected 200, got %d", rec.Code)
	}
	if got := productBody.Product.Lots[0].Quantity; got != 38 {
		t.Fatalf("expected lot quantity 38 after sale, got %d", got)
	}
}

func TestConfirmUnsettledSaleRejected(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sale/items", token, csrf, domain.AddItemRequest{
		TerminalID: "caixa-8",
		ProductID:  "prod-cafe-01",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/sale/confirm", token, csrf, terminalRequest{TerminalID: "caixa-8"}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unsettled confirm, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestRemoveItemViaDelete(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sale/items", token, csrf, domain.AddItemRequest{
		TerminalID: "caixa-7",
		ProductID:  "prod-refri-01",
		Quantity:   3,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", rec.Code)
	}

	var env sessionEnvelope
	rec = doJSON(t, api, http.MethodDelete, "/api/v1/sale/items/prod-refri-01?terminal=caixa-7", token, "", nil, &env)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove item: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if len(env.Session.Lines) != 0 {
		t.Fatalf("expected empty cart after removal, got %d lines", len(env.Session.Lines))
	}
}

func TestDiscountEndpointValidatesPercent(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sale/items", token, csrf, domain.AddItemRequest{
		TerminalID: "caixa-6",
		ProductID:  "prod-acucar-01",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/sale/discount", token, csrf, domain.DiscountRequest{
		TerminalID: "caixa-6",
		Percent:    decimal.RequireFromString("150"),
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for percent over 100, got %d", rec.Code)
	}

	var env sessionEnvelope
	rec = doJSON(t, api, http.MethodPost, "/api/v1/sale/discount", token, csrf, domain.DiscountRequest{
		TerminalID: "caixa-6",
		Percent:    decimal.RequireFromString("10"),
	}, &env)
	if rec.Code != http.StatusOK {
		t.Fatalf("set discount: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if !env.Session.DiscountAmount.Equal(decimal.RequireFromString("0.43")) {
		t.Fatalf("expected discount 0.43, got %s", env.Session.DiscountAmount)
	}
}

func TestExitEndpointNeedsTwoPresses(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sale/items", token, csrf, domain.AddItemRequest{
		TerminalID: "caixa-5",
		ProductID:  "prod-oleo-01",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", rec.Code)
	}

	var exit domain.ExitSessionResponse
	rec = doJSON(t, api, http.MethodPost, "/api/v1/sale/exit", token, csrf, terminalRequest{TerminalID: "caixa-5"}, &exit)
	if rec.Code != http.StatusOK {
		t.Fatalf("first exit press: expected 200, got %d", rec.Code)
	}
	if exit.Exited {
		t.Fatalf("expected first press to only arm the exit")
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/sale/exit", token, csrf, terminalRequest{TerminalID: "caixa-5"}, &exit)
	if rec.Code != http.StatusOK {
		t.Fatalf("second exit press: expected 200, got %d", rec.Code)
	}
	if !exit.Exited {
		t.Fatalf("expected second press inside the window to discard the sale")
	}
}

func TestAuditLogsAdminOnly(t *testing.T) {
	api := newTestAPI(t)

	sellerToken := loginAsSeller(t, api)
	rec := doJSON(t, api, http.MethodGet, "/api/v1/audit-logs", sellerToken, "", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller, got %d", rec.Code)
	}

	adminToken := loginAsAdmin(t, api)
	rec = doJSON(t, api, http.MethodGet, "/api/v1/audit-logs", adminToken, "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCreateSellerEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	var body struct {
		Seller domain.SellerUser `json:"seller"`
	}
	rec := doJSON(t, api, http.MethodPost, "/api/v1/users/sellers", token, csrf, domain.SellerCreateRequest{
		Username: "caixadois",
		Password: "senha123",
	}, &body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if body.Seller.Role != domain.RoleSeller {
		t.Fatalf("unexpected role %s", body.Seller.Role)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{
		Username: "caixadois",
		Password: "senha123",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("new seller login failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestReceiptEndpointsForStoredSale(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsSeller(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sale/items", token, csrf, domain.AddItemRequest{
		TerminalID: "caixa-4",
		ProductID:  "prod-feijao-01",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, api, http.MethodPost, "/api/v1/sale/payments", token, csrf, domain.PaymentRequest{
		TerminalID: "caixa-4",
		Method:     domain.PaymentCash,
		Amount:     decimal.RequireFromString("10.00"),
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("add payment: expected 200, got %d", rec.Code)
	}

	var confirm domain.ConfirmSaleResponse
	rec = doJSON(t, api, http.MethodPost, "/api/v1/sale/confirm", token, csrf, terminalRequest{TerminalID: "caixa-4"}, &confirm)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/sales/"+confirm.Sale.ID+"/receipt", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	recRaw := httptest.NewRecorder()
	api.Handler().ServeHTTP(recRaw, req)
	if recRaw.Code != http.StatusOK {
		t.Fatalf("receipt: expected 200, got %d", recRaw.Code)
	}
	if ct := recRaw.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected receipt content type %q", ct)
	}

	var escpos domain.HardwareReceiptResponse
	rec = doJSON(t, api, http.MethodPost, "/api/v1/hardware/receipt/escpos", token, csrf, domain.HardwareReceiptRequest{
		SaleID: confirm.Sale.ID,
	}, &escpos)
	if rec.Code != http.StatusOK {
		t.Fatalf("escpos: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if escpos.EscposBase64 == "" {
		t.Fatalf("expected escpos payload")
	}
}
