// Package expiry classifies lot expiry dates relative to a reference day.
package expiry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"balcaopos/backend/internal/domain"
)

type StatusKind string

const (
	StatusExpired      StatusKind = "expired"
	StatusExpiresToday StatusKind = "expires-today"
	StatusExpiringSoon StatusKind = "expiring-soon"
	StatusValid        StatusKind = "valid"
)

// farFutureDays is returned for unparseable dates so malformed data never
// raises an alert or blocks a sale.
const farFutureDays = 999

// soonWindowDays is the inclusive upper bound for the expiring-soon band.
const soonWindowDays = 7

type Status struct {
	Status          StatusKind `json:"status"`
	DaysUntilExpiry int        `json:"days_until_expiry"`
	Message         string     `json:"message"`
}

// Evaluate classifies a DD/MM/YYYY date string against today. Both dates
// are normalized to midnight and the whole-day difference is taken with a
// ceiling, so a lot expiring later today is never reported as expired.
// Malformed input fails open as valid.
func Evaluate(dateStr string, today time.Time) Status {
	day, month, year, ok := splitDate(dateStr)
	if !ok {
		return Status{Status: StatusValid, DaysUntilExpiry: farFutureDays}
	}

	loc := today.Location()
	expiresAt := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	todayMidnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	diff := expiresAt.Sub(todayMidnight)
	days := int(diff.Hours() / 24)
	if diff > 0 && diff%(24*time.Hour) != 0 {
		days++
	}

	switch {
	case days < 0:
		return Status{
			Status:          StatusExpired,
			DaysUntilExpiry: days,
			Message:         fmt.Sprintf("Expired %d day(s) ago", -days),
		}
	case days == 0:
		return Status{
			Status:          StatusExpiresToday,
			DaysUntilExpiry: 0,
			Message:         "Expires today!",
		}
	case days <= soonWindowDays:
		return Status{
			Status:          StatusExpiringSoon,
			DaysUntilExpiry: days,
			Message:         fmt.Sprintf("Expires in %d day(s)", days),
		}
	default:
		return Status{Status: StatusValid, DaysUntilExpiry: days}
	}
}

func splitDate(dateStr string) (day, month, year int, ok bool) {
	parts := strings.Split(dateStr, "/")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var err error
	if day, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, 0, false
	}
	if month, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return 0, 0, 0, false
	}
	if year, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
		return 0, 0, 0, false
	}
	return day, month, year, true
}

// Scan walks every lot of every product and buckets the problematic ones.
// The NO_STOCK sentinel has no date and is skipped (it fails open as valid).
func Scan(products []domain.Product, today time.Time) domain.ExpiryAlertResponse {
	resp := domain.ExpiryAlertResponse{
		Expired:  make([]domain.ExpiryAlert, 0, 8),
		Expiring: make([]domain.ExpiryAlert, 0, 8),
	}

	for _, p := range products {
		for _, lot := range p.Lots {
			status := Evaluate(lot.Date, today)
			alert := domain.ExpiryAlert{
				ProductID:   p.ID,
				ProductName: p.Name,
				LotDate:     lot.Date,
				Quantity:    lot.Quantity,
				Status:      string(status.Status),
				DaysLeft:    status.DaysUntilExpiry,
				Message:     status.Message,
			}
			switch status.Status {
			case StatusExpired:
				resp.Expired = append(resp.Expired, alert)
			case StatusExpiresToday, StatusExpiringSoon:
				resp.Expiring = append(resp.Expiring, alert)
			}
		}
	}

	resp.Summary = buildSummary(resp.Expired, resp.Expiring)
	return resp
}

// buildSummary mirrors the operator-facing alert text: counts per bucket,
// first three product names each, then an overflow line.
func buildSummary(expired, expiring []domain.ExpiryAlert) string {
	if len(expired) == 0 && len(expiring) == 0 {
		return ""
	}

	var b strings.Builder
	appendBucket := func(header string, alerts []domain.ExpiryAlert) {
		if len(alerts) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %d product(s):\n", header, len(alerts))
		shown := alerts
		if len(shown) > 3 {
			shown = shown[:3]
		}
		for _, a := range shown {
			fmt.Fprintf(&b, "- %s (%s)\n", a.ProductName, a.Message)
		}
		if len(alerts) > 3 {
			fmt.Fprintf(&b, "... and %d more product(s)\n", len(alerts)-3)
		}
	}

	appendBucket("Expired:", expired)
	appendBucket("Near expiry:", expiring)
	return strings.TrimRight(b.String(), "\n")
}
