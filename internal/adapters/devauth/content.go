package devauth

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jemaat/portal/internal/ports"
)

// contentStore is a tiny REST collection server keyed by the first path segment.
type contentStore struct {
	mu     sync.Mutex
	nextID int
	items  map[string]map[int]map[string]any
}

func newContentStore() *contentStore {
	s := &contentStore{nextID: 1, items: make(map[string]map[int]map[string]any)}
	s.seed()
	return s
}

func (s *contentStore) seed() {
	now := time.Now().UTC()
	month := func(offset int) string { return now.AddDate(0, -offset, 0).Format("2006-01") + "-05" }

	s.add("pengumuman", map[string]any{"judul": "Ibadah Raya", "content": "<p>Ibadah raya dimulai pukul <b>08.00</b>.</p>"})
	s.add("jadwal", map[string]any{"judul": "Persekutuan Doa", "tanggal": now.Format("2006-01-02"), "jam": "18:00"})
	s.add("keuangan", map[string]any{"tanggal": month(1), "jenis": "pemasukan", "jumlah": 2500000, "keterangan": "Persembahan"})
	s.add("keuangan", map[string]any{"tanggal": month(1), "jenis": "pengeluaran", "jumlah": 750000, "keterangan": "Listrik"})
	s.add("keuangan", map[string]any{"tanggal": month(0), "jenis": "pemasukan", "jumlah": 1800000, "keterangan": "Persembahan"})
}

func (s *contentStore) add(collection string, item map[string]any) map[string]any {
	coll, ok := s.items[collection]
	if !ok {
		coll = make(map[int]map[string]any)
		s.items[collection] = coll
	}
	id := s.nextID
	s.nextID++
	item["id"] = id
	coll[id] = item
	return item
}

func (s *contentStore) serve(req ports.BackendRequest) ports.BackendResponse {
	segs := strings.Split(strings.Trim(req.Path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return jsonResponse(http.StatusNotFound, map[string]any{"message": "not found"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if segs[0] == "export" && len(segs) == 2 {
		return s.export(segs[1])
	}

	collection := segs[0]
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	if len(segs) == 1 {
		switch method {
		case http.MethodGet:
			list := s.list(collection)
			return jsonResponse(http.StatusOK, map[string]any{"data": list, "total": len(list)})
		case http.MethodPost:
			var item map[string]any
			if err := json.Unmarshal(req.Body, &item); err != nil || item == nil {
				return jsonResponse(http.StatusUnprocessableEntity, map[string]any{"message": "body must be a JSON object"})
			}
			return jsonResponse(http.StatusCreated, s.add(collection, item))
		default:
			return jsonResponse(http.StatusMethodNotAllowed, map[string]any{"message": "method not allowed"})
		}
	}

	id, err := strconv.Atoi(segs[1])
	if err != nil || len(segs) > 2 {
		return jsonResponse(http.StatusNotFound, map[string]any{"message": "not found"})
	}
	item, ok := s.items[collection][id]
	if !ok {
		return jsonResponse(http.StatusNotFound, map[string]any{"message": "not found"})
	}

	switch method {
	case http.MethodGet:
		return jsonResponse(http.StatusOK, item)
	case http.MethodPut, http.MethodPatch:
		var patch map[string]any
		if err := json.Unmarshal(req.Body, &patch); err != nil {
			return jsonResponse(http.StatusUnprocessableEntity, map[string]any{"message": "body must be a JSON object"})
		}
		for k, v := range patch {
			if k != "id" {
				item[k] = v
			}
		}
		return jsonResponse(http.StatusOK, item)
	case http.MethodDelete:
		delete(s.items[collection], id)
		return ports.BackendResponse{Status: http.StatusNoContent}
	default:
		return jsonResponse(http.StatusMethodNotAllowed, map[string]any{"message": "method not allowed"})
	}
}

func (s *contentStore) list(collection string) []map[string]any {
	coll := s.items[collection]
	ids := make([]int, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, coll[id])
	}
	return out
}

// export renders a collection as CSV with sorted columns.
func (s *contentStore) export(collection string) ports.BackendResponse {
	items := s.list(collection)
	colSet := map[string]struct{}{}
	for _, it := range items {
		for k := range it {
			colSet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(cols)
	for _, it := range items {
		row := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := it[c]; ok {
				row[i] = strings.Trim(mustJSON(v), `"`)
			}
		}
		_ = w.Write(row)
	}
	w.Flush()
	return ports.BackendResponse{Status: http.StatusOK, ContentType: "text/csv", Body: buf.Bytes()}
}

func jsonResponse(status int, v any) ports.BackendResponse {
	return ports.BackendResponse{Status: status, ContentType: "application/json", Body: []byte(mustJSON(v))}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
