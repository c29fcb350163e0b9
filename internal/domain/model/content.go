//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"encoding/json"
	"sort"
)

// ContentResource describes one kind of record the portal forwards to the church API.
// The portal does not model the records themselves; they stay opaque JSON.
type ContentResource struct {
	Name        string // URL segment used by the portal, e.g. "announcements"
	Title       string // heading shown on listing pages
	BackendPath string // collection path on the church API
	Public      bool   // listed on the public site without signing in
	Screen      string // name of the protected screen that manages it
}

var contentResources = map[string]ContentResource{
	"announcements":   {Name: "announcements", Title: "Pengumuman", BackendPath: "/pengumuman", Public: true, Screen: "admin-announcements"},
	"warta":           {Name: "warta", Title: "Warta Jemaat", BackendPath: "/warta", Public: true, Screen: "admin-warta"},
	"schedules":       {Name: "schedules", Title: "Jadwal Ibadah", BackendPath: "/jadwal", Public: true, Screen: "admin-schedules"},
	"devotionals":     {Name: "devotionals", Title: "Renungan", BackendPath: "/renungan", Public: true, Screen: "admin-devotionals"},
	"finance-reports": {Name: "finance-reports", Title: "Laporan Keuangan", BackendPath: "/laporan-keuangan", Public: true, Screen: "super-admin-finance-reports"},
	"congregants":     {Name: "congregants", Title: "Data Jemaat", BackendPath: "/jemaat", Screen: "admin-congregants"},
	"ledger":          {Name: "ledger", Title: "Keuangan", BackendPath: "/keuangan", Screen: "super-admin-finance"},
}

// LookupContentResource returns the resource registered under name.
func LookupContentResource(name string) (ContentResource, bool) {
	r, ok := contentResources[name]
	return r, ok
}

// ContentResources returns all resources ordered by name.
func ContentResources() []ContentResource {
	out := make([]ContentResource, 0, len(contentResources))
	for _, r := range contentResources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var richTextFields = []string{"content", "body", "description", "isi"}

// RichTextFields lists the record fields that may carry HTML. They are
// sanitized before records leave the content service.
func RichTextFields() []string {
	return append([]string(nil), richTextFields...)
}

// IsRichTextField reports whether field may carry sanitized HTML.
func IsRichTextField(field string) bool {
	for _, f := range richTextFields {
		if f == field {
			return true
		}
	}
	return false
}

// ContentRecord is a single opaque record from the church API.
type ContentRecord map[string]json.RawMessage

// ID returns the record identifier as a string, accepting numeric or string ids.
func (r ContentRecord) ID() string {
	raw, ok := r["id"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// String returns the field as text, or "" when it is absent or not a string.
func (r ContentRecord) String(field string) string {
	raw, ok := r[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// ContentPage is a listing returned by the church API.
type ContentPage struct {
	Resource ContentResource
	Items    []ContentRecord
	Total    int
}
