package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Daskott/relief/store"
)

const singleObject = "application/vnd.pgrst.object+json"

func (c *Client) Insert(ctx context.Context, table string, row interface{}, out interface{}) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal %v row: %v", table, err)
	}

	headers := map[string]string{"Prefer": "return=minimal"}
	if out != nil {
		headers = map[string]string{"Prefer": "return=representation", "Accept": singleObject}
	}

	resp, err := c.do(ctx, http.MethodPost, c.tableURL(table, nil), body, headers, c.userToken(ctx))
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *Client) Update(ctx context.Context, table string, filters []store.Filter, patch map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal %v patch: %v", table, err)
	}

	// a single object response makes PostgREST refuse (PGRST116) to touch
	// anything but exactly one row
	headers := map[string]string{"Prefer": "return=representation", "Accept": singleObject}
	resp, err := c.do(ctx, http.MethodPatch, c.tableURL(table, filterValues(filters)), body, headers, c.userToken(ctx))
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *Client) Delete(ctx context.Context, table string, filters []store.Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("refusing to delete every row in '%v'", table)
	}

	resp, err := c.do(ctx, http.MethodDelete, c.tableURL(table, filterValues(filters)), nil, nil, c.userToken(ctx))
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

func (c *Client) Select(ctx context.Context, table string, query store.Query, out interface{}) (int64, error) {
	values := filterValues(query.Filters)
	values.Set("select", "*")

	if len(query.Orders) > 0 {
		orders := make([]string, 0, len(query.Orders))
		for _, order := range query.Orders {
			direction := "desc"
			if order.Ascending {
				direction = "asc"
			}
			orders = append(orders, fmt.Sprintf("%v.%v", order.Column, direction))
		}
		values.Set("order", strings.Join(orders, ","))
	}

	if query.Range != nil {
		values.Set("offset", strconv.Itoa(query.Range.From))
		values.Set("limit", strconv.Itoa(query.Range.Limit()))
	}

	headers := map[string]string{}
	if query.Count {
		headers["Prefer"] = "count=exact"
	}

	resp, err := c.do(ctx, http.MethodGet, c.tableURL(table, values), nil, headers, c.userToken(ctx))
	if err != nil {
		return 0, err
	}

	if err := decodeResponse(resp, out); err != nil {
		return 0, err
	}

	if !query.Count {
		return 0, nil
	}
	return parseContentRange(resp.header.Get("Content-Range"))
}

func (c *Client) SelectOne(ctx context.Context, table string, filters []store.Filter, out interface{}) error {
	values := filterValues(filters)
	values.Set("select", "*")

	resp, err := c.do(ctx, http.MethodGet, c.tableURL(table, values), nil, map[string]string{"Accept": singleObject}, c.userToken(ctx))
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *Client) tableURL(table string, values url.Values) string {
	u := c.restURL + "/" + url.PathEscape(table)
	if len(values) == 0 {
		return u
	}
	return u + "?" + values.Encode()
}

func filterValues(filters []store.Filter) url.Values {
	values := url.Values{}
	for _, filter := range filters {
		if filter.Value == nil {
			values.Add(filter.Column, "is.null")
			continue
		}
		values.Add(filter.Column, "eq."+formatValue(filter.Value))
	}
	return values
}

func formatValue(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case time.Time:
		return value.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return value.String()
	}
	return fmt.Sprint(v)
}

func decodeResponse(resp *response, out interface{}) error {
	if resp.status >= 400 {
		return parseStoreError(resp.body, resp.status)
	}

	if out == nil || len(resp.body) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("unmarshal response: %v", err)
	}
	return nil
}

// parseContentRange reads the total from a header like "0-9/25" or "*/0".
func parseContentRange(header string) (int64, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || header[idx+1:] == "*" {
		return 0, fmt.Errorf("no exact count in Content-Range %q", header)
	}

	total, err := strconv.ParseInt(header[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Range %q: %v", header, err)
	}
	return total, nil
}
