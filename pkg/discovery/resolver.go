package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHandleService = "https://public.api.bsky.app"
	defaultPLCDirectory  = "https://plc.directory"

	pdsServiceID   = "#atproto_pds"
	pdsServiceType = "AtprotoPersonalDataServer"
)

// HTTPResolver implements Resolver against the public resolution
// infrastructure: the com.atproto.identity.resolveHandle endpoint for
// handles, the PLC directory for did:plc, and the well-known DID document
// for did:web.
type HTTPResolver struct {
	httpClient    *http.Client
	handleService string
	plcDirectory  string
}

// ResolverOption configures an HTTPResolver.
type ResolverOption func(*HTTPResolver)

// WithHTTPClient overrides the HTTP client used for lookups.
func WithHTTPClient(h *http.Client) ResolverOption {
	return func(r *HTTPResolver) {
		if h != nil {
			r.httpClient = h
		}
	}
}

// WithHandleService overrides the XRPC service used for handle resolution.
func WithHandleService(baseURL string) ResolverOption {
	return func(r *HTTPResolver) {
		if baseURL != "" {
			r.handleService = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithPLCDirectory overrides the PLC directory base URL.
func WithPLCDirectory(baseURL string) ResolverOption {
	return func(r *HTTPResolver) {
		if baseURL != "" {
			r.plcDirectory = strings.TrimRight(baseURL, "/")
		}
	}
}

// NewHTTPResolver constructs an HTTPResolver with default endpoints.
func NewHTTPResolver(opts ...ResolverOption) *HTTPResolver {
	r := &HTTPResolver{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		handleService: defaultHandleService,
		plcDirectory:  defaultPLCDirectory,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Resolver = (*HTTPResolver)(nil)

// HandleToDID resolves a handle via com.atproto.identity.resolveHandle.
func (r *HTTPResolver) HandleToDID(ctx context.Context, handle string) (string, error) {
	h := strings.TrimSpace(handle)
	if h == "" {
		return "", fmt.Errorf("discovery: handle is required")
	}
	endpoint := r.handleService + "/xrpc/com.atproto.identity.resolveHandle?handle=" + url.QueryEscape(h)
	body, err := r.getJSON(ctx, endpoint)
	if err != nil {
		return "", err
	}

	var payload struct {
		DID string `json:"did"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("discovery: decode resolveHandle response: %w", err)
	}
	if payload.DID == "" {
		return "", fmt.Errorf("discovery: resolveHandle returned no did for %q", h)
	}
	return payload.DID, nil
}

// DIDToPDS resolves a DID document and extracts the declared PDS endpoint.
func (r *HTTPResolver) DIDToPDS(ctx context.Context, did string) (string, error) {
	var docURL string
	switch {
	case strings.HasPrefix(did, "did:plc:"):
		docURL = r.plcDirectory + "/" + url.PathEscape(did)
	case strings.HasPrefix(did, "did:web:"):
		// Only the bare-domain form of did:web is supported.
		domain := strings.TrimPrefix(did, "did:web:")
		if domain == "" || strings.Contains(domain, ":") {
			return "", fmt.Errorf("discovery: unsupported did:web form %q", did)
		}
		docURL = "https://" + domain + "/.well-known/did.json"
	default:
		return "", fmt.Errorf("discovery: unsupported DID method in %q", did)
	}

	body, err := r.getJSON(ctx, docURL)
	if err != nil {
		return "", err
	}

	var doc struct {
		Service []struct {
			ID              string `json:"id"`
			Type            string `json:"type"`
			ServiceEndpoint string `json:"serviceEndpoint"`
		} `json:"service"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("discovery: decode DID document: %w", err)
	}

	for _, svc := range doc.Service {
		if !strings.HasSuffix(svc.ID, pdsServiceID) && svc.Type != pdsServiceType {
			continue
		}
		endpoint := strings.TrimSpace(svc.ServiceEndpoint)
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			continue
		}
		return endpoint, nil
	}
	return "", fmt.Errorf("discovery: DID document for %q declares no PDS endpoint", did)
}

func (r *HTTPResolver) getJSON(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("discovery: %s returned status %d", endpoint, resp.StatusCode)
	}
	return body, nil
}
