package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jemaat/portal/internal/domain/model"
)

func TestParseContentForm(t *testing.T) {
	form := url.Values{
		"tanggal":    {"2025-05-04"},
		"jenis":      {"pemasukan"},
		"jumlah":     {"1.250.000"},
		"keterangan": {"  Persembahan  "},
		"unknown":    {"dropped"},
	}
	req := httptest.NewRequest(http.MethodPost, "/super-admin/finance", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	fields, values, errs := parseContentForm(req, "ledger")

	assert.Empty(t, errs)
	assert.Equal(t, map[string]any{
		"tanggal":    "2025-05-04",
		"jenis":      "pemasukan",
		"jumlah":     int64(1250000),
		"keterangan": "Persembahan",
	}, fields)
	assert.Equal(t, "1.250.000", values["jumlah"])
	assert.NotContains(t, fields, "unknown")
}

func TestFormFieldParse(t *testing.T) {
	tests := []struct {
		name    string
		field   FormField
		raw     string
		wantErr bool
	}{
		{"date ok", FormField{Label: "Tanggal", Type: FieldDate}, "2025-01-31", false},
		{"date bad", FormField{Label: "Tanggal", Type: FieldDate}, "31/01/2025", true},
		{"month ok", FormField{Label: "Periode", Type: FieldMonth}, "2025-01", false},
		{"month bad", FormField{Label: "Periode", Type: FieldMonth}, "Jan 2025", true},
		{"time ok", FormField{Label: "Waktu", Type: FieldTime}, "07:30", false},
		{"time bad", FormField{Label: "Waktu", Type: FieldTime}, "7.30 pagi", true},
		{"email ok", FormField{Label: "Email", Type: FieldEmail}, "a@b.id", false},
		{"email bad", FormField{Label: "Email", Type: FieldEmail}, "@b.id", true},
		{"negative number", FormField{Label: "Jumlah", Type: FieldNumber}, "-5", true},
		{"select bad", FormField{Label: "Jenis", Type: FieldSelect, Options: []string{"a"}}, "b", true},
		{"too long", FormField{Label: "Judul", Type: FieldText, MaxLen: 3}, "abcd", true},
		{"multibyte within limit", FormField{Label: "Judul", Type: FieldText, MaxLen: 3}, "äöü", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, msg := tt.field.parse(tt.raw)
			if tt.wantErr {
				assert.NotEmpty(t, msg)
			} else {
				assert.Empty(t, msg)
			}
		})
	}
}

func TestParseContentJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
			`{"nama_ibadah":"Ibadah Raya","tanggal":"2025-06-01","waktu":"09:00","extra":true}`))
		fields, errs := parseContentJSON(httptest.NewRecorder(), req, "schedules")
		assert.Empty(t, errs)
		assert.Equal(t, "Ibadah Raya", fields["nama_ibadah"])
		assert.NotContains(t, fields, "extra")
	})

	t.Run("wrong types and missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nama_ibadah":["x"]}`))
		_, errs := parseContentJSON(httptest.NewRecorder(), req, "schedules")
		assert.Contains(t, errs, "nama_ibadah")
		assert.Equal(t, "Tanggal wajib diisi.", errs["tanggal"])
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		fields, errs := parseContentJSON(httptest.NewRecorder(), req, "schedules")
		assert.Nil(t, fields)
		assert.Contains(t, errs, "_form")
	})
}

func TestRecordValues(t *testing.T) {
	rec := model.ContentRecord{
		"tanggal": json.RawMessage(`"2025-02-01T00:00:00Z"`),
		"jumlah":  json.RawMessage(`150000`),
		"jenis":   json.RawMessage(`"pengeluaran"`),
	}

	values := recordValues(rec, FormFor("ledger"))

	require.Len(t, values, 4)
	assert.Equal(t, "2025-02-01", values["tanggal"])
	assert.Equal(t, "150000", values["jumlah"])
	assert.Equal(t, "pengeluaran", values["jenis"])
	assert.Empty(t, values["keterangan"])
}

func TestEveryResourceHasAForm(t *testing.T) {
	for _, res := range model.ContentResources() {
		assert.NotEmpty(t, FormFor(res.Name), res.Name)
	}
}
