package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"balcaopos/backend/internal/domain"
	"balcaopos/backend/internal/store"
)

const (
	ReportFilterAll   = "all"
	ReportFilterToday = "today"
	ReportFilterWeek  = "week"
	ReportFilterMonth = "month"
)

// SalesReport aggregates completed sales over a period filter.
func (s *Service) SalesReport(ctx context.Context, filter string) (domain.SalesReport, error) {
	if filter == "" {
		filter = ReportFilterAll
	}

	now := s.now()
	var from time.Time
	switch filter {
	case ReportFilterAll:
		// zero from: everything
	case ReportFilterToday:
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case ReportFilterWeek:
		from = now.AddDate(0, 0, -7)
	case ReportFilterMonth:
		from = now.AddDate(0, -1, 0)
	default:
		return domain.SalesReport{}, store.ErrInvalidInput
	}

	sales, err := s.repo.ListSaleRecords(ctx, from, time.Time{}, 0)
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := domain.SalesReport{
		Filter:        filter,
		Count:         len(sales),
		Revenue:       decimal.Zero,
		AverageTicket: decimal.Zero,
		Sales:         sales,
	}
	for _, record := range sales {
		report.Revenue = report.Revenue.Add(record.Total)
		for _, item := range record.Items {
			report.ItemsSold += item.Quantity
		}
	}
	if report.Count > 0 {
		report.AverageTicket = report.Revenue.DivRound(decimal.NewFromInt(int64(report.Count)), 2)
	}
	return report, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.SaleRecord, error) {
	record, err := s.repo.GetSaleRecord(ctx, id)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	return *record, nil
}
