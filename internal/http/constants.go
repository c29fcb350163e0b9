package httpx

// CurrentPage constants identify pages in templates and navigation.
const (
	PageHome                = "home"
	PagePublicList          = "public-list"
	PagePublicDetail        = "public-detail"
	PageLogin               = "login"
	PageAdminDashboard      = "admin-dashboard"
	PageSuperAdminDashboard = "super-admin-dashboard"
	PageContentList         = "content-list"
	PageContentForm         = "content-form"
	PageFinance             = "finance"
	PageAudit               = "audit"
)

// Template paths used for loading templates from disk in dev mode and tests.
const (
	TemplatePathFromRoot = "frontend/templates"
	TemplatePathFromTest = "../../frontend/templates"
	StaticPathFromRoot   = "frontend/static"
)

// FormMode represents the mode of a form (create or edit).
type FormMode string

const (
	FormModeEdit   FormMode = "edit"
	FormModeCreate FormMode = "create"
)

//nolint:gochecknoglobals // static read-only lookup for templates
var contentTemplates = map[string]string{
	PageHome:                "home-content",
	PagePublicList:          "public-list-content",
	PagePublicDetail:        "public-detail-content",
	PageLogin:               "login-content",
	PageAdminDashboard:      "dashboard-content",
	PageSuperAdminDashboard: "dashboard-content",
	PageContentList:         "content-list-content",
	PageContentForm:         "content-form-content",
	PageFinance:             "finance-content",
	PageAudit:               "audit-content",
}

// ContentTemplateFor returns the content template for the given CurrentPage.
// Unknown pages fall back to the home page.
func ContentTemplateFor(currentPage string) string {
	if name, ok := contentTemplates[currentPage]; ok {
		return name
	}
	return "home-content"
}
