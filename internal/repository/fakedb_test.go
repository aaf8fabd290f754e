package repository

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tasksync/internal/backend"
	"github.com/felixgeelhaar/tasksync/internal/log"
)

// fakeDB is an in-memory stand-in for the data and storage services. It
// understands eq./is.null filters, a single order column, the
// team:teams(*) embed, and merge-duplicates upserts.
type fakeDB struct {
	mu      sync.Mutex
	tables  map[string][]map[string]any
	uploads map[string][]byte
	reads   map[string]int
	failOn  map[string]int // "METHOD table" -> status
	clock   int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		tables:  map[string][]map[string]any{},
		uploads: map[string][]byte{},
		reads:   map[string]int{},
		failOn:  map[string]int{},
	}
}

func (f *fakeDB) readCount(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[table]
}

func (f *fakeDB) rows(table string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.tables[table]...)
}

func (f *fakeDB) upload(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads[key]
}

func (f *fakeDB) fail(method, table string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[method+" "+table] = status
}

func (f *fakeDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if rest, ok := strings.CutPrefix(r.URL.Path, "/storage/v1/object/"); ok {
		data, _ := io.ReadAll(r.Body)
		f.uploads[rest] = data
		_, _ = w.Write([]byte(`{}`))
		return
	}

	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	if status, ok := f.failOn[r.Method+" "+table]; ok {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"code":"XX000","message":"injected failure"}`))
		return
	}

	q := r.URL.Query()
	match := func(row map[string]any) bool {
		for key, vals := range q {
			switch key {
			case "select", "order", "limit", "on_conflict":
				continue
			}
			for _, v := range vals {
				switch {
				case v == "is.null":
					if row[key] != nil {
						return false
					}
				case strings.HasPrefix(v, "eq."):
					if row[key] == nil || fmt.Sprint(row[key]) != strings.TrimPrefix(v, "eq.") {
						return false
					}
				}
			}
		}
		return true
	}

	returning := strings.Contains(r.Header.Get("Prefer"), "return=representation")

	switch r.Method {
	case http.MethodGet:
		f.reads[table]++
		out := []map[string]any{}
		for _, row := range f.tables[table] {
			if match(row) {
				out = append(out, row)
			}
		}
		if order := q.Get("order"); order != "" {
			col, dir, _ := strings.Cut(strings.Split(order, ",")[0], ".")
			sort.SliceStable(out, func(i, j int) bool {
				a, b := fmt.Sprint(out[i][col]), fmt.Sprint(out[j][col])
				if dir == "desc" {
					return a > b
				}
				return a < b
			})
		}
		if q.Get("select") == "team:teams(*)" {
			embedded := []map[string]any{}
			for _, row := range out {
				var team map[string]any
				for _, t := range f.tables["teams"] {
					if t["id"] == row["team_id"] {
						team = t
					}
				}
				embedded = append(embedded, map[string]any{"team": team})
			}
			out = embedded
		}
		_ = json.NewEncoder(w).Encode(out)

	case http.MethodPost:
		var body any
		_ = json.NewDecoder(r.Body).Decode(&body)
		var incoming []map[string]any
		switch v := body.(type) {
		case []any:
			for _, item := range v {
				incoming = append(incoming, item.(map[string]any))
			}
		case map[string]any:
			incoming = append(incoming, v)
		}

		merge := strings.Contains(r.Header.Get("Prefer"), "merge-duplicates")
		conflict := q.Get("on_conflict")
		var written []map[string]any
		for _, row := range incoming {
			if _, ok := row["created_at"]; !ok {
				row["created_at"] = f.now()
			}
			if merge && conflict != "" {
				if existing := f.find(table, conflict, row[conflict]); existing != nil {
					for k, v := range row {
						if k != "created_at" {
							existing[k] = v
						}
					}
					written = append(written, existing)
					continue
				}
			}
			f.tables[table] = append(f.tables[table], row)
			written = append(written, row)
		}
		w.WriteHeader(http.StatusCreated)
		if returning {
			_ = json.NewEncoder(w).Encode(written)
		}

	case http.MethodPatch:
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		updated := []map[string]any{}
		for _, row := range f.tables[table] {
			if match(row) {
				for k, v := range patch {
					row[k] = v
				}
				updated = append(updated, row)
			}
		}
		if returning {
			_ = json.NewEncoder(w).Encode(updated)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		kept := f.tables[table][:0]
		for _, row := range f.tables[table] {
			if !match(row) {
				kept = append(kept, row)
			}
		}
		f.tables[table] = kept
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f *fakeDB) find(table, column string, value any) map[string]any {
	for _, row := range f.tables[table] {
		if fmt.Sprint(row[column]) == fmt.Sprint(value) {
			return row
		}
	}
	return nil
}

// now hands out strictly increasing timestamps so ordering is stable.
func (f *fakeDB) now() string {
	f.clock++
	return time.Date(2026, 1, 1, 0, 0, f.clock, 0, time.UTC).Format(time.RFC3339)
}

func (f *fakeDB) seed(table string, row map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = f.now()
	}
	f.tables[table] = append(f.tables[table], row)
}

func newTestRepos(t *testing.T, ttl time.Duration) (*Repositories, *fakeDB, *backend.Client) {
	t.Helper()

	db := newFakeDB()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start test server: %v", err)
	}
	srv := &httptest.Server{Listener: listener, Config: &http.Server{Handler: db}}
	srv.Start()
	t.Cleanup(srv.Close)

	client, err := backend.New(backend.Options{URL: srv.URL, AnonKey: "anon", Logger: log.Discard()})
	require.NoError(t, err)

	return New(client, Options{CacheTTL: ttl, AvatarBucket: "avatars"}), db, client
}
