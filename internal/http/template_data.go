package httpx

import (
	"net/http"
	"net/url"
	"strconv"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/domain/model"
)

const (
	errMsgFixBelow    = "Periksa kembali isian di bawah."
	msgSessionExpired = "Sesi Anda telah berakhir. Silakan masuk kembali."
)

// PageMeta describes the page being rendered.
type PageMeta struct {
	Title       string
	CurrentPage string
}

// NavItem is one entry of the navigation bar.
type NavItem struct {
	Label  string
	Path   string
	Active bool
}

// PaginationData contains pagination information for list views.
type PaginationData struct {
	Page     int
	PageSize int
	Total    int
	BasePath string
}

// TemplateDataBuilder provides a fluent API for building template data maps.
type TemplateDataBuilder struct {
	data map[string]any
	r    *http.Request
}

// NewTemplateData creates a builder initialized with the data every page needs.
func NewTemplateData(r *http.Request, meta PageMeta) *TemplateDataBuilder {
	return &TemplateDataBuilder{data: basePageData(r, meta), r: r}
}

func basePageData(r *http.Request, meta PageMeta) map[string]any {
	state := CurrentState(r.Context())
	data := map[string]any{
		"Title":         meta.Title,
		"CurrentPage":   meta.CurrentPage,
		"CurrentPath":   r.URL.Path,
		"CSRFToken":     GetCSRFToken(r),
		"SessionStatus": state.Status.String(),
		"Nav":           navFor(state, r.URL.Path),
	}
	if state.IsAuthenticated() {
		id := *state.Identity
		data["User"] = map[string]string{
			"Name":  id.DisplayName,
			"Email": id.Email,
			"Role":  roleLabel(id.Role),
		}
		data["IsAdmin"] = id.Role == domainauth.RoleAdmin || id.Role == domainauth.RoleSuperAdmin
		data["IsSuperAdmin"] = id.Role == domainauth.RoleSuperAdmin
		data["Landing"] = domainauth.LandingPath(id.Role)
	}
	return data
}

func roleLabel(r domainauth.Role) string {
	switch r {
	case domainauth.RoleSuperAdmin:
		return "Super Admin"
	case domainauth.RoleAdmin:
		return "Admin Majelis"
	default:
		return "Jemaat"
	}
}

// navFor lists the public pages and every protected screen the role may view.
func navFor(state domainauth.SessionState, current string) []NavItem {
	items := []NavItem{{Label: "Beranda", Path: "/"}}
	for _, res := range model.ContentResources() {
		if res.Public {
			items = append(items, NavItem{Label: res.Title, Path: "/" + res.Name})
		}
	}
	if state.IsAuthenticated() {
		for _, s := range protectedScreens {
			if s.Allows(state.Identity.Role) {
				items = append(items, NavItem{Label: screenLabel(s.Name), Path: s.Path})
			}
		}
	}
	for i := range items {
		items[i].Active = items[i].Path == current
	}
	return items
}

func screenLabel(name string) string {
	switch name {
	case ScreenAdminDashboard:
		return "Dasbor Admin"
	case ScreenSuperAdminDashboard:
		return "Dasbor Super Admin"
	case ScreenSuperAdminAudit:
		return "Log Akses"
	}
	for _, res := range model.ContentResources() {
		if res.Screen == name {
			return "Kelola " + res.Title
		}
	}
	return name
}

// WithPagination adds page numbers and Prev/Next URLs.
func (b *TemplateDataBuilder) WithPagination(p PaginationData) *TemplateDataBuilder {
	if p.Page < 1 {
		p.Page = 1
	}
	b.data["Page"] = p.Page
	b.data["PageSize"] = p.PageSize
	b.data["TotalCount"] = p.Total
	if p.Page > 1 {
		b.data["PrevURL"] = pageURL(p.BasePath, b.r.URL.Query(), p.Page-1)
	}
	if p.PageSize > 0 && p.Page*p.PageSize < p.Total {
		b.data["NextURL"] = pageURL(p.BasePath, b.r.URL.Query(), p.Page+1)
	}
	return b
}

func pageURL(base string, q url.Values, page int) string {
	next := url.Values{}
	for k, v := range q {
		next[k] = append([]string(nil), v...)
	}
	next.Set("page", strconv.Itoa(page))
	return base + "?" + next.Encode()
}

// WithError sets a general error message.
func (b *TemplateDataBuilder) WithError(msg string) *TemplateDataBuilder {
	b.data["Error"] = true
	b.data["ErrorMessage"] = msg
	return b
}

// WithFieldErrors adds field-level validation errors.
func (b *TemplateDataBuilder) WithFieldErrors(errs map[string]string) *TemplateDataBuilder {
	if len(errs) > 0 {
		b.data["Errors"] = errs
	}
	return b
}

// With adds a custom field to the template data.
func (b *TemplateDataBuilder) With(key string, value any) *TemplateDataBuilder {
	b.data[key] = value
	return b
}

// Build returns the final template data map.
func (b *TemplateDataBuilder) Build() map[string]any {
	return b.data
}
