package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/tasksync/internal/errors"
)

// Query builds a request against one table of the data service.
// Filters accumulate; a terminal method (Execute, MaybeSingle, Insert,
// Upsert, Update, Delete) sends it.
type Query struct {
	c      *Client
	table  string
	params url.Values
	order  []string
	count  int
}

// From starts a query against table.
func (c *Client) From(table string) *Query {
	return &Query{c: c, table: table, params: url.Values{}}
}

// Select sets the returned columns, e.g. "id,title" or "*".
func (q *Query) Select(columns string) *Query {
	q.params.Set("select", columns)
	return q
}

// Eq filters column = value.
func (q *Query) Eq(column, value string) *Query {
	q.params.Add(column, "eq."+value)
	q.count++
	return q
}

// Is filters column IS value, where value is null, true or false.
func (q *Query) Is(column, value string) *Query {
	q.params.Add(column, "is."+value)
	q.count++
	return q
}

// In filters column IN values.
func (q *Query) In(column string, values []string) *Query {
	quoted := make([]string, len(values))
	for i, v := range values {
		if strings.ContainsAny(v, `,()"`) {
			v = strconv.Quote(v)
		}
		quoted[i] = v
	}
	q.params.Add(column, "in.("+strings.Join(quoted, ",")+")")
	q.count++
	return q
}

// Order sorts by column. Repeated calls add tie-breakers.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.order = append(q.order, column+"."+dir)
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

func (q *Query) values() url.Values {
	v := url.Values{}
	for k, vs := range q.params {
		v[k] = append([]string(nil), vs...)
	}
	if len(q.order) > 0 {
		v.Set("order", strings.Join(q.order, ","))
	}
	return v
}

func (q *Query) send(ctx context.Context, method string, query url.Values, body any, prefer string, dest any) error {
	r := request{
		method: method,
		path:   "/rest/v1/" + q.table,
		query:  query,
		body:   body,
		token:  q.c.bearer(ctx),
	}
	if prefer != "" {
		r.headers = http.Header{"Prefer": {prefer}}
	}

	resp, err := q.c.do(ctx, r)
	if err != nil {
		return err
	}
	return parseResponse(resp, dest)
}

// Execute runs a select and decodes the rows into dest, a pointer to a slice.
func (q *Query) Execute(ctx context.Context, dest any) error {
	return q.send(ctx, http.MethodGet, q.values(), nil, "", dest)
}

// MaybeSingle runs a select expecting at most one row. It reports false
// and leaves dest untouched when no row matched.
func (q *Query) MaybeSingle(ctx context.Context, dest any) (bool, error) {
	var rows []json.RawMessage
	if err := q.send(ctx, http.MethodGet, q.values(), nil, "", &rows); err != nil {
		return false, err
	}
	switch len(rows) {
	case 0:
		return false, nil
	case 1:
		if err := json.Unmarshal(rows[0], dest); err != nil {
			return false, fmt.Errorf("failed to decode row: %w", err)
		}
		return true, nil
	default:
		return false, &APIError{
			Status:  http.StatusNotAcceptable,
			Code:    "PGRST116",
			Message: "JSON object requested, multiple rows returned",
			Details: fmt.Sprintf("the result contains %d rows", len(rows)),
		}
	}
}

// Insert adds rows (a struct or slice). When dest is non-nil the stored
// rows are returned into it.
func (q *Query) Insert(ctx context.Context, rows any, dest any) error {
	return q.send(ctx, http.MethodPost, q.returning(nil), rows, preferReturn(dest, ""), dest)
}

// Upsert inserts rows or merges them into existing ones that collide on
// onConflict (a comma separated column list; empty means the primary key).
func (q *Query) Upsert(ctx context.Context, rows any, onConflict string, dest any) error {
	extra := url.Values{}
	if onConflict != "" {
		extra.Set("on_conflict", onConflict)
	}
	return q.send(ctx, http.MethodPost, q.returning(extra), rows, preferReturn(dest, "resolution=merge-duplicates"), dest)
}

// Update patches the rows matching the filters.
func (q *Query) Update(ctx context.Context, patch any, dest any) error {
	if q.count == 0 {
		return errors.NewInvalidError(fmt.Sprintf("refusing to update %s without a filter", q.table))
	}
	return q.send(ctx, http.MethodPatch, q.values(), patch, preferReturn(dest, ""), dest)
}

// Delete removes the rows matching the filters.
func (q *Query) Delete(ctx context.Context) error {
	if q.count == 0 {
		return errors.NewInvalidError(fmt.Sprintf("refusing to delete from %s without a filter", q.table))
	}
	return q.send(ctx, http.MethodDelete, q.values(), nil, "return=minimal", nil)
}

// returning keeps only the select column list for write requests.
func (q *Query) returning(extra url.Values) url.Values {
	v := url.Values{}
	if sel := q.params.Get("select"); sel != "" {
		v.Set("select", sel)
	}
	for k, vs := range extra {
		v[k] = vs
	}
	return v
}

func preferReturn(dest any, extra string) string {
	ret := "return=minimal"
	if dest != nil {
		ret = "return=representation"
	}
	if extra == "" {
		return ret
	}
	return extra + "," + ret
}
