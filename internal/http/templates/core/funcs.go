// Package core holds the template helpers shared by every portal page.
package core

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/jemaat/portal/internal/domain/model"
)

// Deps holds optional dependencies for constructing the core template func map.
type Deps struct {
	Template           **template.Template
	ContentTemplateFor func(string) string
	// Now defaults to time.Now; used for relative times.
	Now func() time.Time
}

// Funcs returns the template.FuncMap used by all portal templates.
func Funcs(deps Deps) template.FuncMap {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	funcs := template.FuncMap{
		"sectionTmpl":  deps.ContentTemplateFor,
		"friendlyTime": func(ts any) string { return FriendlyRelativeTime(asTime(ts), now()) },
		"timeTag":      timeTag,
		"add":          func(a, b int) int { return a + b },
		"sub":          func(a, b int) int { return a - b },
		"contains":     strings.Contains,
		"rupiah":       Rupiah,
		"truncateText": TruncateText,
		"field":        FieldText,
		"recordTitle":  RecordTitle,
		"recordDate":   RecordDate,
		"richText":     richText,
	}

	funcs["renderSection"] = func(page string, data any) (template.HTML, error) {
		if deps.Template == nil || *deps.Template == nil {
			return "", errors.New("template not initialized")
		}
		var buf bytes.Buffer
		if err := (*deps.Template).ExecuteTemplate(&buf, deps.ContentTemplateFor(page), data); err != nil {
			return "", err
		}
		// #nosec G203 - output of our own html/template set, already escaped.
		return template.HTML(buf.String()), nil
	}
	return funcs
}

func asTime(ts any) time.Time {
	switch v := ts.(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	}
	return time.Time{}
}

// FriendlyRelativeTime renders t relative to now in Indonesian, falling back
// to a date for anything older than a week.
func FriendlyRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < 0:
		return FormatDate(t)
	case d < time.Minute:
		return "baru saja"
	case d < time.Hour:
		return strconv.Itoa(int(d/time.Minute)) + " menit lalu"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d/time.Hour)) + " jam lalu"
	case d < 7*24*time.Hour:
		return strconv.Itoa(int(d/(24*time.Hour))) + " hari lalu"
	default:
		return FormatDate(t)
	}
}

var monthNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatDate renders t as "2 Maret 2025".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

func timeTag(ts any) template.HTML {
	t0 := asTime(ts)
	if t0.IsZero() {
		return ""
	}
	// #nosec G203 - built from escaped values only
	return template.HTML(fmt.Sprintf(
		"<time datetime=\"%s\">%s %s</time>",
		t0.UTC().Format(time.RFC3339),
		template.HTMLEscapeString(FormatDate(t0.Local())),
		t0.Local().Format("15:04"),
	))
}

// Rupiah formats an amount as "Rp 1.500.000".
func Rupiah(v any) string {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case int32:
		n = int64(x)
	case float64:
		n = int64(x)
	default:
		return fmt.Sprint(v)
	}

	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	b.Grow(len(s) + len(s)/3 + 4)
	if neg {
		b.WriteString("-")
	}
	b.WriteString("Rp ")
	prefix := len(s) % 3
	if prefix == 0 {
		prefix = 3
	}
	b.WriteString(s[:prefix])
	for i := prefix; i < len(s); i += 3 {
		b.WriteByte('.')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// TruncateText truncates a string to a maximum number of runes, adding an
// ellipsis when it had to cut.
func TruncateText(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen > 1 {
		return string(runes[:maxLen-1]) + "…"
	}
	return string(runes[:1])
}

//nolint:gochecknoglobals // read-only field preference lists
var (
	titleFields = []string{"judul", "title", "nama", "name", "nama_ibadah", "keterangan"}
	dateFields  = []string{"tanggal", "date", "periode", "created_at"}
)

// FieldText renders a scalar field as text. Numbers and booleans are shown as
// written by the church API; objects, arrays and null render empty.
func FieldText(r model.ContentRecord, name string) string {
	if s := r.String(name); s != "" {
		return s
	}
	raw := strings.TrimSpace(string(r[name]))
	if raw == "" || raw == "null" || strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, `"`) {
		return ""
	}
	return raw
}

// RecordTitle picks the first non-empty title-like field of an opaque record.
func RecordTitle(r model.ContentRecord) string {
	for _, f := range titleFields {
		if v := strings.TrimSpace(r.String(f)); v != "" {
			return v
		}
	}
	if id := r.ID(); id != "" {
		return "#" + id
	}
	return "(tanpa judul)"
}

// RecordDate picks the first date-like field of an opaque record.
func RecordDate(r model.ContentRecord) string {
	for _, f := range dateFields {
		if v := strings.TrimSpace(r.String(f)); v != "" {
			if t, err := time.Parse("2006-01-02", v); err == nil {
				return FormatDate(t)
			}
			return v
		}
	}
	return ""
}

// richText marks a sanitized rich-text field as HTML. Other fields are escaped.
func richText(r model.ContentRecord, field string) template.HTML {
	if !model.IsRichTextField(field) {
		return template.HTML(template.HTMLEscapeString(r.String(field))) // #nosec G203 - escaped
	}
	// #nosec G203 - rich-text fields are sanitized by the content service
	return template.HTML(r.String(field))
}
