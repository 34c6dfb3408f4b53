package atclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dropanchor/anchor_sdk_go/internal/httpx"
	"github.com/dropanchor/anchor_sdk_go/internal/ids"
	"github.com/dropanchor/anchor_sdk_go/internal/obs"
)

// Request describes a single XRPC call: a namespaced method mapped to a URL
// path, an optional JSON body, and an optional bearer token.
type Request struct {
	Method      string
	NSID        string
	Query       url.Values
	Body        any
	AccessToken string
}

// Transport delivers an XRPC request and reports the raw outcome: the HTTP
// status and the response bytes. Non-2xx statuses are reported through the
// return values, not through err; err is reserved for failures that produced
// no usable response at all.
//
// Implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, req *Request) (status int, body []byte, err error)
}

type httpTransport struct {
	client *httpx.Client
}

func newHTTPTransport(baseURL string, opts ...httpx.Option) (*httpTransport, error) {
	cl, err := httpx.NewClient(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &httpTransport{client: cl}, nil
}

func (t *httpTransport) Send(ctx context.Context, req *Request) (int, []byte, error) {
	hreq := &httpx.Request{
		Method: req.Method,
		Path:   "/xrpc/" + req.NSID,
		Query:  req.Query,
		Header: make(http.Header),
	}
	hreq.Header.Set("X-Request-ID", ids.New())
	if req.AccessToken != "" {
		hreq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	}
	if req.Body != nil {
		body, contentType, err := httpx.WithJSONBody(req.Body)
		if err != nil {
			return 0, nil, err
		}
		hreq.Body = body
		hreq.Header.Set("Content-Type", contentType)
	}

	resp, err := t.client.Do(ctx, hreq)
	if err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) {
			obs.ObserveRequest(req.NSID, strconv.Itoa(httpErr.StatusCode))
			return httpErr.StatusCode, httpErr.Body, nil
		}
		obs.ObserveRequest(req.NSID, "error")
		return 0, nil, err
	}

	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		obs.ObserveRequest(req.NSID, "error")
		return 0, nil, err
	}
	obs.ObserveRequest(req.NSID, strconv.Itoa(resp.StatusCode))
	return resp.StatusCode, data, nil
}
