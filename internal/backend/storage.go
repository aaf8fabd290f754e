package backend

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Upload stores body at path inside bucket. With upsert an existing
// object is replaced.
func (c *Client) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string, upsert bool) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/storage/v1/object/" + objectPath(bucket, path),
		raw:         body,
		contentType: contentType,
		headers:     http.Header{"X-Upsert": {strconv.FormatBool(upsert)}},
		token:       c.bearer(ctx),
	})
	if err != nil {
		return err
	}
	return parseResponse(resp, nil)
}

// PublicURL returns the public address of an object in a public bucket.
func (c *Client) PublicURL(bucket, path string) string {
	return c.baseURL + "/storage/v1/object/public/" + objectPath(bucket, path)
}

func objectPath(bucket, path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(parts, "/")
}
