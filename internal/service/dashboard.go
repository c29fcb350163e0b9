package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/domain/model"
)

const dashboardFanOut = 4

var (
	adminDashboardResources      = []string{"announcements", "warta", "schedules", "devotionals", "congregants"}
	superAdminDashboardResources = []string{"announcements", "warta", "schedules", "devotionals", "congregants", "finance-reports"}
)

// DashboardServiceOptions groups dependencies for DashboardService.
type DashboardServiceOptions struct {
	Content *ContentService
	Logger  *slog.Logger
}

// DashboardService aggregates listings for the back-office dashboards.
type DashboardService struct {
	content *ContentService
	logger  *slog.Logger
}

// NewDashboardService constructs a new DashboardService.
func NewDashboardService(opts DashboardServiceOptions) *DashboardService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{content: opts.Content, logger: logger.With("component", "dashboard")}
}

// ResourceCount is one dashboard card. Unavailable is set when the listing failed.
type ResourceCount struct {
	Resource    model.ContentResource
	Total       int
	Unavailable bool
}

// Dashboard is the data behind a dashboard page.
type Dashboard struct {
	Counts []ResourceCount
	// Ledger is only filled for super admins.
	Ledger            *model.LedgerSummary
	LedgerUnavailable bool
}

// Admin builds the admin dashboard.
func (s *DashboardService) Admin(ctx context.Context, token string) (Dashboard, error) {
	return s.build(ctx, token, adminDashboardResources, false)
}

// SuperAdmin builds the super admin dashboard including the monthly ledger summary.
func (s *DashboardService) SuperAdmin(ctx context.Context, token string) (Dashboard, error) {
	return s.build(ctx, token, superAdminDashboardResources, true)
}

// build fetches every listing concurrently. A failing card is marked
// unavailable; only an expired session aborts the whole dashboard.
func (s *DashboardService) build(ctx context.Context, token string, names []string, withLedger bool) (Dashboard, error) {
	counts := make([]ResourceCount, len(names))
	var ledger []model.ContentRecord
	var ledgerErr error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardFanOut)

	for i, name := range names {
		res, ok := model.LookupContentResource(name)
		if !ok {
			continue
		}
		counts[i].Resource = res
		g.Go(func() error {
			page, err := s.content.List(gctx, token, res, nil)
			if err != nil {
				if errors.Is(err, domainauth.ErrSessionExpired) {
					return err
				}
				s.logger.WarnContext(ctx, "dashboard listing failed", "resource", res.Name, "error", err)
				counts[i].Unavailable = true
				return nil
			}
			counts[i].Total = page.Total
			return nil
		})
	}

	if withLedger {
		res, _ := model.LookupContentResource("ledger")
		g.Go(func() error {
			page, err := s.content.List(gctx, token, res, nil)
			if errors.Is(err, domainauth.ErrSessionExpired) {
				return err
			}
			ledger, ledgerErr = page.Items, err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{Counts: counts}
	if withLedger {
		if ledgerErr != nil {
			s.logger.WarnContext(ctx, "ledger listing failed", "error", ledgerErr)
			d.LedgerUnavailable = true
		} else {
			summary := SummarizeLedger(ledger)
			d.Ledger = &summary
		}
	}
	return d, nil
}

var (
	ledgerDateFields   = []string{"tanggal", "date", "created_at"}
	ledgerTypeFields   = []string{"jenis", "type", "tipe"}
	ledgerAmountFields = []string{"jumlah", "amount", "nominal"}
	ledgerDateLayouts  = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006-01"}
)

// SummarizeLedger groups ledger entries by month into income and expense
// totals, oldest month first. Entries with an unreadable date, type or amount
// are skipped and counted.
func SummarizeLedger(entries []model.ContentRecord) model.LedgerSummary {
	byMonth := map[string]*model.MonthlyTotals{}
	var sum model.LedgerSummary

	for _, e := range entries {
		month, okMonth := ledgerMonth(e)
		kind, okKind := ledgerType(e)
		amount, okAmount := ledgerAmount(e)
		if !okMonth || !okKind || !okAmount {
			sum.Skipped++
			continue
		}

		m, ok := byMonth[month]
		if !ok {
			m = &model.MonthlyTotals{Month: month}
			byMonth[month] = m
		}
		if kind == model.LedgerIncome {
			m.Income += amount
			sum.Income += amount
		} else {
			m.Expense += amount
			sum.Expense += amount
		}
	}

	sum.Months = make([]model.MonthlyTotals, 0, len(byMonth))
	for _, m := range byMonth {
		sum.Months = append(sum.Months, *m)
	}
	sort.Slice(sum.Months, func(i, j int) bool { return sum.Months[i].Month < sum.Months[j].Month })
	return sum
}

func ledgerMonth(e model.ContentRecord) (string, bool) {
	for _, f := range ledgerDateFields {
		v := strings.TrimSpace(e.String(f))
		if v == "" {
			continue
		}
		for _, layout := range ledgerDateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.Format("2006-01"), true
			}
		}
		return "", false
	}
	return "", false
}

func ledgerType(e model.ContentRecord) (model.LedgerEntryType, bool) {
	for _, f := range ledgerTypeFields {
		switch strings.ToLower(strings.TrimSpace(e.String(f))) {
		case "":
			continue
		case "pemasukan", "masuk", "income", "debit":
			return model.LedgerIncome, true
		case "pengeluaran", "keluar", "expense", "kredit", "credit":
			return model.LedgerExpense, true
		default:
			return "", false
		}
	}
	return "", false
}

func ledgerAmount(e model.ContentRecord) (int64, bool) {
	for _, f := range ledgerAmountFields {
		raw, ok := e[f]
		if !ok {
			continue
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil {
			if n < 0 || math.IsInf(n, 0) || math.IsNaN(n) {
				return 0, false
			}
			return int64(math.Round(n)), true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return parseRupiah(s)
		}
		return 0, false
	}
	return 0, false
}

// parseRupiah reads amounts such as "1500000", "Rp 1.500.000" or "1.500.000,00".
// Dots are thousands separators and anything after a comma is dropped.
func parseRupiah(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "Rp"), ".")
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	s = strings.NewReplacer(".", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
