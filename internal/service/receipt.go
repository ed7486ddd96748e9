package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"balcaopos/backend/internal/domain"
	"balcaopos/backend/internal/store"
)

// renderReceipt builds the plain-text receipt handed back with every
// confirmed sale.
func renderReceipt(storeName string, record domain.SaleRecord) string {
	return strings.Join(receiptLines(storeName, record), "\n")
}

func receiptLines(storeName string, record domain.SaleRecord) []string {
	lines := []string{
		storeName,
		"================================",
		"Venda: " + record.ID,
		"Data:  " + record.Timestamp.Format("02/01/2006 15:04:05"),
		"--------------------------------",
	}
	for _, item := range record.Items {
		lines = append(lines, fmt.Sprintf("%s x%d", item.Name, item.Quantity))
		lines = append(lines, fmt.Sprintf("  %s un  R$ %s", item.UnitPrice.StringFixed(2), item.Total.StringFixed(2)))
	}
	lines = append(lines,
		"--------------------------------",
		fmt.Sprintf("Subtotal : R$ %s", record.Subtotal.StringFixed(2)),
	)
	if record.DiscountAmount.IsPositive() {
		lines = append(lines, fmt.Sprintf("Desconto : R$ %s (%s%%)", record.DiscountAmount.StringFixed(2), record.DiscountPercent.StringFixed(0)))
	}
	lines = append(lines, fmt.Sprintf("Total    : R$ %s", record.Total.StringFixed(2)))
	for _, payment := range record.Payments {
		lines = append(lines, fmt.Sprintf("%-9s: R$ %s", payment.Label, payment.Amount.StringFixed(2)))
	}
	if record.TotalChange.IsPositive() {
		lines = append(lines, fmt.Sprintf("Troco    : R$ %s", record.TotalChange.StringFixed(2)))
	}
	lines = append(lines,
		"================================",
		"Obrigado pela preferencia!",
		"",
	)
	return lines
}

// ReceiptText re-renders the receipt of a stored sale.
func (s *Service) ReceiptText(ctx context.Context, saleID string) (string, error) {
	record, err := s.repo.GetSaleRecord(ctx, saleID)
	if err != nil {
		return "", err
	}
	return renderReceipt(s.storeName, *record), nil
}

// BuildHardwareReceipt renders a stored sale as raw ESC/POS bytes for a
// local printer bridge.
func (s *Service) BuildHardwareReceipt(ctx context.Context, req domain.HardwareReceiptRequest) (domain.HardwareReceiptResponse, error) {
	req.SaleID = strings.TrimSpace(req.SaleID)
	if req.SaleID == "" {
		return domain.HardwareReceiptResponse{}, store.ErrInvalidInput
	}
	record, err := s.repo.GetSaleRecord(ctx, req.SaleID)
	if err != nil {
		return domain.HardwareReceiptResponse{}, err
	}

	lines := receiptLines(s.storeName, *record)

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return domain.HardwareReceiptResponse{
		SaleID:       record.ID,
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		PreviewText:  strings.Join(lines, "\n"),
		FileName:     fmt.Sprintf("receipt-%s.bin", record.ID),
	}, nil
}
