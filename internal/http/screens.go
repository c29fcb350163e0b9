package httpx

import (
	domainauth "github.com/jemaat/portal/internal/domain/auth"
)

// Screen names. Content resources refer to these through model.ContentResource.Screen.
const (
	ScreenAdminDashboard          = "admin-dashboard"
	ScreenAdminAnnouncements      = "admin-announcements"
	ScreenAdminWarta              = "admin-warta"
	ScreenAdminSchedules          = "admin-schedules"
	ScreenAdminDevotionals        = "admin-devotionals"
	ScreenAdminCongregants        = "admin-congregants"
	ScreenSuperAdminDashboard     = "super-admin-dashboard"
	ScreenSuperAdminFinance       = "super-admin-finance"
	ScreenSuperAdminFinanceReport = "super-admin-finance-reports"
	ScreenSuperAdminAudit         = "super-admin-audit"
)

//nolint:gochecknoglobals // static route table, built once at startup
var (
	adminRoles      = []domainauth.Role{domainauth.RoleAdmin, domainauth.RoleSuperAdmin}
	superAdminRoles = []domainauth.Role{domainauth.RoleSuperAdmin}

	protectedScreens = []domainauth.Screen{
		domainauth.MustScreen(ScreenAdminDashboard, "/admin/dashboard", adminRoles...),
		domainauth.MustScreen(ScreenAdminAnnouncements, "/admin/announcements", adminRoles...),
		domainauth.MustScreen(ScreenAdminWarta, "/admin/warta", adminRoles...),
		domainauth.MustScreen(ScreenAdminSchedules, "/admin/schedules", adminRoles...),
		domainauth.MustScreen(ScreenAdminDevotionals, "/admin/devotionals", adminRoles...),
		domainauth.MustScreen(ScreenAdminCongregants, "/admin/congregants", adminRoles...),
		domainauth.MustScreen(ScreenSuperAdminDashboard, "/super-admin/dashboard", superAdminRoles...),
		domainauth.MustScreen(ScreenSuperAdminFinance, "/super-admin/finance", superAdminRoles...),
		domainauth.MustScreen(ScreenSuperAdminFinanceReport, "/super-admin/finance-reports", superAdminRoles...),
		domainauth.MustScreen(ScreenSuperAdminAudit, "/super-admin/audit", superAdminRoles...),
	}

	screensByName = indexScreens(protectedScreens)
)

func indexScreens(screens []domainauth.Screen) map[string]domainauth.Screen {
	out := make(map[string]domainauth.Screen, len(screens))
	for _, s := range screens {
		if _, dup := out[s.Name]; dup {
			panic("httpx: duplicate screen " + s.Name)
		}
		out[s.Name] = s
	}
	return out
}

// ScreenByName returns a protected screen from the route table.
func ScreenByName(name string) (domainauth.Screen, bool) {
	s, ok := screensByName[name]
	return s, ok
}

// ProtectedScreens returns a copy of the route table.
func ProtectedScreens() []domainauth.Screen {
	out := make([]domainauth.Screen, len(protectedScreens))
	copy(out, protectedScreens)
	return out
}

func mustScreenByName(name string) domainauth.Screen {
	s, ok := ScreenByName(name)
	if !ok {
		panic("httpx: unknown screen " + name)
	}
	return s
}
