package httpx

import (
	"context"
	"net/http"

	"github.com/jemaat/portal/internal/domain/model"
	"github.com/jemaat/portal/internal/ports"
	"github.com/jemaat/portal/internal/service"
)

// DashboardHandlers serves the back-office dashboards and the access log.
type DashboardHandlers struct {
	pageResponder
	Dashboards *service.DashboardService
	Audit      ports.AuditReader // optional
}

type dashboardCard struct {
	Title       string `json:"title"`
	Resource    string `json:"resource"`
	Path        string `json:"path,omitempty"`
	Total       int    `json:"total"`
	Unavailable bool   `json:"unavailable"`
}

type dashboardResponse struct {
	Cards             []dashboardCard      `json:"cards"`
	Ledger            *model.LedgerSummary `json:"ledger,omitempty"`
	LedgerUnavailable bool                 `json:"ledger_unavailable,omitempty"`
}

// Admin renders the admin dashboard.
func (h *DashboardHandlers) Admin(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "Dasbor Admin", PageAdminDashboard, h.Dashboards.Admin)
}

// SuperAdmin renders the super admin dashboard with the ledger summary.
func (h *DashboardHandlers) SuperAdmin(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "Dasbor Super Admin", PageSuperAdminDashboard, h.Dashboards.SuperAdmin)
}

func (h *DashboardHandlers) serve(
	w http.ResponseWriter,
	r *http.Request,
	title, page string,
	build func(ctx context.Context, token string) (service.Dashboard, error),
) {
	var d service.Dashboard
	err := withToken(r, func(ctx context.Context, token string) error {
		var err error
		d, err = build(ctx, token)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := dashboardResponse{Cards: dashboardCards(d), Ledger: d.Ledger, LedgerUnavailable: d.LedgerUnavailable}
	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusOK, resp)
		return
	}
	data := NewTemplateData(r, PageMeta{Title: title, CurrentPage: page}).
		With("Cards", resp.Cards).
		With("Ledger", resp.Ledger).
		With("LedgerUnavailable", resp.LedgerUnavailable).
		Build()
	h.render(w, r, http.StatusOK, data)
}

func dashboardCards(d service.Dashboard) []dashboardCard {
	cards := make([]dashboardCard, 0, len(d.Counts))
	for _, c := range d.Counts {
		if c.Resource.Name == "" {
			continue
		}
		card := dashboardCard{
			Title:       c.Resource.Title,
			Resource:    c.Resource.Name,
			Total:       c.Total,
			Unavailable: c.Unavailable,
		}
		if s, ok := ScreenByName(c.Resource.Screen); ok {
			card.Path = s.Path
		}
		cards = append(cards, card)
	}
	return cards
}

// AuditLog lists recorded access events, newest first.
func (h *DashboardHandlers) AuditLog(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, 50, 500)
	opts := model.AccessEventListOptions{Limit: limit, Offset: offset}
	q := r.URL.Query()
	if raw := q.Get("kind"); raw != "" {
		if k, ok := model.ParseAccessEventKind(raw); ok {
			opts.Kind = &k
		}
	}
	if c := q.Get("client_id"); c != "" {
		opts.ClientID = &c
	}

	var events []model.AccessEvent
	if h.Audit != nil {
		var err error
		if events, err = h.Audit.List(r.Context(), opts); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if events == nil {
		events = []model.AccessEvent{}
	}

	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusOK, map[string]any{"events": events, "limit": limit, "offset": offset})
		return
	}
	data := NewTemplateData(r, PageMeta{Title: "Log Akses", CurrentPage: PageAudit}).
		With("Events", events).
		With("Kinds", accessEventKinds).
		With("SelectedKind", q.Get("kind")).
		With("ClientID", q.Get("client_id")).
		With("Limit", limit).
		With("Offset", offset).
		With("NextOffset", nextOffset(len(events), limit, offset)).
		With("PrevOffset", max(offset-limit, 0)).
		With("AuditEnabled", h.Audit != nil).
		Build()
	h.render(w, r, http.StatusOK, data)
}

//nolint:gochecknoglobals // filter options of the access log
var accessEventKinds = []model.AccessEventKind{
	model.AccessLoginSucceeded,
	model.AccessLoginFailed,
	model.AccessLogout,
	model.AccessSessionExpired,
	model.AccessHydrateFailed,
}

// nextOffset is -1 when the page was not full.
func nextOffset(n, limit, offset int) int {
	if n < limit {
		return -1
	}
	return offset + limit
}
