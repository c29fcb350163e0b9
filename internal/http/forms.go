package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jemaat/portal/internal/domain/model"
)

// FieldType selects the input widget and how a value is parsed.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldDate     FieldType = "date"
	FieldMonth    FieldType = "month"
	FieldTime     FieldType = "time"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
)

// FormField describes one input of a content form. Records stay opaque; the
// form only decides which keys the portal sends.
type FormField struct {
	Name     string
	Label    string
	Type     FieldType
	Required bool
	MaxLen   int
	Options  []string
}

//nolint:gochecknoglobals // static form table
var resourceForms = map[string][]FormField{
	"announcements": {
		{Name: "judul", Label: "Judul", Type: FieldText, Required: true, MaxLen: 200},
		{Name: "tanggal", Label: "Tanggal", Type: FieldDate},
		{Name: "isi", Label: "Isi", Type: FieldTextarea, Required: true, MaxLen: 20000},
	},
	"warta": {
		{Name: "judul", Label: "Judul", Type: FieldText, Required: true, MaxLen: 200},
		{Name: "tanggal", Label: "Tanggal", Type: FieldDate, Required: true},
		{Name: "isi", Label: "Isi", Type: FieldTextarea, MaxLen: 50000},
	},
	"schedules": {
		{Name: "nama_ibadah", Label: "Nama Ibadah", Type: FieldText, Required: true, MaxLen: 200},
		{Name: "tanggal", Label: "Tanggal", Type: FieldDate, Required: true},
		{Name: "waktu", Label: "Waktu", Type: FieldTime},
		{Name: "tempat", Label: "Tempat", Type: FieldText, MaxLen: 200},
		{Name: "pengkhotbah", Label: "Pengkhotbah", Type: FieldText, MaxLen: 200},
	},
	"devotionals": {
		{Name: "judul", Label: "Judul", Type: FieldText, Required: true, MaxLen: 200},
		{Name: "ayat", Label: "Ayat", Type: FieldText, MaxLen: 200},
		{Name: "tanggal", Label: "Tanggal", Type: FieldDate},
		{Name: "isi", Label: "Isi", Type: FieldTextarea, Required: true, MaxLen: 20000},
	},
	"finance-reports": {
		{Name: "judul", Label: "Judul", Type: FieldText, Required: true, MaxLen: 200},
		{Name: "periode", Label: "Periode", Type: FieldMonth, Required: true},
		{Name: "isi", Label: "Ringkasan", Type: FieldTextarea, MaxLen: 20000},
	},
	"congregants": {
		{Name: "nama", Label: "Nama", Type: FieldText, Required: true, MaxLen: 200},
		{Name: "email", Label: "Email", Type: FieldEmail, MaxLen: 254},
		{Name: "telepon", Label: "Telepon", Type: FieldText, MaxLen: 30},
		{Name: "tanggal_lahir", Label: "Tanggal Lahir", Type: FieldDate},
		{Name: "alamat", Label: "Alamat", Type: FieldTextarea, MaxLen: 1000},
	},
	"ledger": {
		{Name: "tanggal", Label: "Tanggal", Type: FieldDate, Required: true},
		{Name: "jenis", Label: "Jenis", Type: FieldSelect, Required: true, Options: []string{"pemasukan", "pengeluaran"}},
		{Name: "jumlah", Label: "Jumlah (Rp)", Type: FieldNumber, Required: true},
		{Name: "keterangan", Label: "Keterangan", Type: FieldText, MaxLen: 500},
	},
}

// FormFor returns the form fields of a resource.
func FormFor(resource string) []FormField {
	return resourceForms[resource]
}

// parseContentForm reads and validates the resource form. It returns the
// fields to send, the raw submitted values for re-rendering and per-field errors.
func parseContentForm(r *http.Request, resource string) (map[string]any, map[string]string, map[string]string) {
	fields := map[string]any{}
	values := map[string]string{}
	errs := map[string]string{}
	if err := r.ParseForm(); err != nil {
		errs["_form"] = "Formulir tidak dapat dibaca."
		return nil, values, errs
	}

	for _, f := range FormFor(resource) {
		raw := strings.TrimSpace(r.PostForm.Get(f.Name))
		values[f.Name] = raw
		if raw == "" {
			if f.Required {
				errs[f.Name] = f.Label + " wajib diisi."
			}
			continue
		}
		v, msg := f.parse(raw)
		if msg != "" {
			errs[f.Name] = msg
			continue
		}
		fields[f.Name] = v
	}
	return fields, values, errs
}

func (f FormField) parse(raw string) (any, string) {
	if f.MaxLen > 0 && utf8.RuneCountInString(raw) > f.MaxLen {
		return nil, fmt.Sprintf("%s maksimal %d karakter.", f.Label, f.MaxLen)
	}
	switch f.Type {
	case FieldDate:
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			return nil, f.Label + " harus berupa tanggal."
		}
	case FieldMonth:
		if _, err := time.Parse("2006-01", raw); err != nil {
			return nil, f.Label + " harus berupa bulan (YYYY-MM)."
		}
	case FieldTime:
		if _, err := time.Parse("15:04", raw); err != nil {
			return nil, f.Label + " harus berupa jam (HH:MM)."
		}
	case FieldEmail:
		if at := strings.IndexByte(raw, '@'); at < 1 || at == len(raw)-1 {
			return nil, f.Label + " tidak valid."
		}
	case FieldNumber:
		n, err := strconv.ParseInt(strings.ReplaceAll(raw, ".", ""), 10, 64)
		if err != nil || n < 0 {
			return nil, f.Label + " harus berupa angka positif."
		}
		return n, ""
	case FieldSelect:
		for _, o := range f.Options {
			if raw == o {
				return raw, ""
			}
		}
		return nil, f.Label + " harus salah satu dari: " + strings.Join(f.Options, ", ") + "."
	}
	return raw, ""
}

// parseContentJSON validates a JSON body against the resource form. Keys the
// form does not declare are ignored.
func parseContentJSON(w http.ResponseWriter, r *http.Request, resource string) (map[string]any, map[string]string) {
	fields := map[string]any{}
	errs := map[string]string{}
	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		errs["_form"] = "Permintaan tidak valid."
		return nil, errs
	}

	for _, f := range FormFor(resource) {
		v, present := body[f.Name]
		var raw string
		switch tv := v.(type) {
		case nil:
		case string:
			raw = strings.TrimSpace(tv)
		case json.Number:
			raw = tv.String()
		default:
			errs[f.Name] = f.Label + " tidak valid."
			continue
		}
		if !present || raw == "" {
			if f.Required {
				errs[f.Name] = f.Label + " wajib diisi."
			}
			continue
		}
		parsed, msg := f.parse(raw)
		if msg != "" {
			errs[f.Name] = msg
			continue
		}
		fields[f.Name] = parsed
	}
	return fields, errs
}

// recordValues fills a form from an existing record. Dates are cut down to
// what the date and month inputs accept.
func recordValues(rec model.ContentRecord, fields []FormField) map[string]string {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		v := rec.String(f.Name)
		if v == "" {
			if raw, ok := rec[f.Name]; ok && string(raw) != "null" {
				v = strings.Trim(string(raw), `"`)
			}
		}
		switch {
		case f.Type == FieldDate && len(v) > 10:
			v = v[:10]
		case f.Type == FieldMonth && len(v) > 7:
			v = v[:7]
		case f.Type == FieldTime && len(v) > 5:
			v = v[:5]
		}
		values[f.Name] = v
	}
	return values
}
