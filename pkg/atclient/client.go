package atclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropanchor/anchor_sdk_go/internal/httpx"
	"github.com/dropanchor/anchor_sdk_go/internal/xrpcapi"
)

const userAgent = "anchor-sdk-go/0.1.0"

// XRPC method NSIDs used by the client.
const (
	nsidCreateSession  = "com.atproto.server.createSession"
	nsidRefreshSession = "com.atproto.server.refreshSession"
	nsidCreateRecord   = "com.atproto.repo.createRecord"
	nsidDeleteRecord   = "com.atproto.repo.deleteRecord"
	nsidGetRecord      = "com.atproto.repo.getRecord"
)

// RepoClient is the capability surface exposed to the rest of an
// application. *Client is the one concrete implementation.
type RepoClient interface {
	CreateSession(ctx context.Context, identifier, password string) (*Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	CreateRecord(ctx context.Context, repo, collection string, record any, accessToken string) (*StrongRef, error)
	DeleteRecord(ctx context.Context, repo, collection, rkey, accessToken string) error
	GetRecord(ctx context.Context, uri, accessToken string) (*RecordResponse, error)
	CreateCheckinWithAddress(ctx context.Context, input CheckinInput, creds Credentials) (*StrongRef, error)
	VerifyStrongRef(ctx context.Context, ref StrongRef, creds Credentials) bool
	ResolveCheckin(ctx context.Context, uri string, creds Credentials) (*ResolvedCheckin, error)
}

var _ RepoClient = (*Client)(nil)

// Client talks to a single PDS endpoint. It is safe for concurrent use when
// its Transport is.
type Client struct {
	transport Transport
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger overrides the logger used for the compensation path.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the clock used to stamp createdAt (useful in tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Client) {
		if fn != nil {
			c.now = fn
		}
	}
}

// WithHTTPClient overrides the HTTP client used by the default transport.
// It has no effect on clients built via NewWithTransport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if t, ok := c.transport.(*httpTransport); ok && h != nil {
			httpx.WithHTTPClient(h)(t.client)
		}
	}
}

// New constructs a Client bound to the provided PDS base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	header := make(http.Header)
	header.Set("User-Agent", userAgent)
	t, err := newHTTPTransport(baseURL, httpx.WithHeaders(header))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return NewWithTransport(t, opts...), nil
}

// NewWithTransport wraps an existing Transport (e.g. a mock).
func NewWithTransport(t Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession authenticates with a handle (or DID) and password.
func (c *Client) CreateSession(ctx context.Context, identifier, password string) (*Session, error) {
	status, body, err := c.transport.Send(ctx, &Request{
		Method: http.MethodPost,
		NSID:   nsidCreateSession,
		Body: map[string]string{
			"identifier": identifier,
			"password":   password,
		},
	})
	return c.decodeSession("create session", status, body, err)
}

// RefreshSession exchanges a refresh token for a new session. The refresh
// token is carried as the bearer token, per the XRPC convention.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	status, body, err := c.transport.Send(ctx, &Request{
		Method:      http.MethodPost,
		NSID:        nsidRefreshSession,
		AccessToken: refreshToken,
	})
	return c.decodeSession("refresh session", status, body, err)
}

func (c *Client) decodeSession(op string, status int, body []byte, err error) (*Session, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidResponse, op, err)
	}
	if status < 200 || status > 299 {
		if eb := xrpcapi.DecodeError(body); eb != nil {
			return nil, fmt.Errorf("%w: %s: status %d (%s)", ErrAuthenticationFailed, op, status, eb)
		}
		return nil, fmt.Errorf("%w: %s: status %d", ErrAuthenticationFailed, op, status)
	}
	var session Session
	if derr := xrpcapi.DecodeResult(body, &session); derr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, op, derr)
	}
	if session.DID == "" || session.AccessJWT == "" {
		return nil, fmt.Errorf("%w: %s: missing did or accessJwt", ErrDecode, op)
	}
	return &session, nil
}

// CreateRecord writes a single record and returns its StrongRef.
func (c *Client) CreateRecord(ctx context.Context, repo, collection string, record any, accessToken string) (*StrongRef, error) {
	if strings.TrimSpace(repo) == "" || strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("atclient: repo and collection are required")
	}
	status, body, err := c.transport.Send(ctx, &Request{
		Method: http.MethodPost,
		NSID:   nsidCreateRecord,
		Body: map[string]any{
			"repo":       repo,
			"collection": collection,
			"record":     record,
		},
		AccessToken: accessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create record: %w", ErrInvalidResponse, err)
	}
	if status < 200 || status > 299 {
		return nil, newHTTPError(status, body)
	}
	var ref StrongRef
	if derr := xrpcapi.DecodeResult(body, &ref); derr != nil {
		return nil, fmt.Errorf("%w: create record: %v", ErrDecode, derr)
	}
	if ref.URI == "" || ref.CID == "" {
		return nil, fmt.Errorf("%w: create record: missing uri or cid", ErrDecode)
	}
	return &ref, nil
}

// DeleteRecord removes a single record. When used as compensation the caller
// may ignore the returned error.
func (c *Client) DeleteRecord(ctx context.Context, repo, collection, rkey, accessToken string) error {
	status, body, err := c.transport.Send(ctx, &Request{
		Method: http.MethodPost,
		NSID:   nsidDeleteRecord,
		Body: map[string]string{
			"repo":       repo,
			"collection": collection,
			"rkey":       rkey,
		},
		AccessToken: accessToken,
	})
	if err != nil {
		return fmt.Errorf("%w: delete record: %w", ErrInvalidResponse, err)
	}
	if status < 200 || status > 299 {
		return newHTTPError(status, body)
	}
	return nil
}

// GetRecord fetches the record addressed by an AT-URI. The URI is validated
// before any request is issued.
func (c *Client) GetRecord(ctx context.Context, uri, accessToken string) (*RecordResponse, error) {
	parsed, err := ParseATURI(uri)
	if err != nil {
		return nil, err
	}
	status, body, err := c.transport.Send(ctx, &Request{
		Method: http.MethodGet,
		NSID:   nsidGetRecord,
		Query: url.Values{
			"repo":       {parsed.Repo},
			"collection": {parsed.Collection},
			"rkey":       {parsed.Rkey},
		},
		AccessToken: accessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get record: %w", ErrInvalidResponse, err)
	}
	if status < 200 || status > 299 {
		return nil, newHTTPError(status, body)
	}
	var rec RecordResponse
	if derr := xrpcapi.DecodeResult(body, &rec); derr != nil {
		return nil, fmt.Errorf("%w: get record: %v", ErrDecode, derr)
	}
	if rec.CID == "" || len(rec.Value) == 0 {
		return nil, fmt.Errorf("%w: get record: missing cid or value", ErrDecode)
	}
	return &rec, nil
}

func newHTTPError(status int, body []byte) error {
	httpErr := &httpx.HTTPError{
		StatusCode: status,
		Body:       body,
	}
	if eb := xrpcapi.DecodeError(body); eb != nil {
		httpErr.JSON = eb
	}
	return httpErr
}
