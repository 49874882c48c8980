package client

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/docshelf/docshelf/pkg/protocol"
)

// DocumentsPath builds the GET /documents path. Zero and empty filters are
// left out of the query string.
func DocumentsPath(q protocol.DocumentQuery) string {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Collection != "" {
		v.Set("collection", q.Collection)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if len(v) == 0 {
		return "/documents"
	}
	return "/documents?" + v.Encode()
}

// GetDocuments lists documents with filtering and pagination.
func (c *Client) GetDocuments(ctx context.Context, q protocol.DocumentQuery) Result[protocol.DocumentPage] {
	return call[protocol.DocumentPage](ctx, c, http.MethodGet, DocumentsPath(q), nil)
}

// GetDocument fetches one document with its extracted markdown.
func (c *Client) GetDocument(ctx context.Context, id string) Result[protocol.DocumentDetail] {
	return call[protocol.DocumentDetail](ctx, c, http.MethodGet, "/documents/"+url.PathEscape(id), nil)
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, id string) Result[protocol.MessageResponse] {
	return call[protocol.MessageResponse](ctx, c, http.MethodDelete, "/documents/"+url.PathEscape(id), nil)
}

// GetStats fetches the dashboard statistics.
func (c *Client) GetStats(ctx context.Context) Result[protocol.DashboardStats] {
	return call[protocol.DashboardStats](ctx, c, http.MethodGet, "/documents/stats", nil)
}

// Download is an open document stream. The caller must close Body.
type Download struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	FileName    string
}

// DownloadDocument streams the original PDF. Downloads bypass retry since the
// body is not buffered.
func (c *Client) DownloadDocument(ctx context.Context, id string) Result[*Download] {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/documents/"+url.PathEscape(id)+"/download", nil)
		if err != nil {
			return nil, err
		}
		c.applyAuth(req)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return fail[*Download](&Error{Kind: KindNetwork, Message: MsgNetwork, Cause: err})
	}

	resp := result.(*http.Response)
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return fail[*Download](statusError(&rawResponse{status: resp.StatusCode, body: data}, MsgGeneric))
	}

	name := id + ".pdf"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return ok(&Download{
		Body:        resp.Body,
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
		FileName:    name,
	})
}

var errNilDownload = errors.New("nil download")

// WriteTo copies the download into w and closes the body.
func (d *Download) WriteTo(w io.Writer) (int64, error) {
	if d == nil || d.Body == nil {
		return 0, errNilDownload
	}
	defer d.Body.Close()
	return io.Copy(w, d.Body)
}
