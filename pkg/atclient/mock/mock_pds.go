// Package mock implements an in-memory personal data server behind the
// atclient.Transport interface, for tests and offline development.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dropanchor/anchor_sdk_go/internal/ids"
	"github.com/dropanchor/anchor_sdk_go/pkg/atclient"
)

var signingSecret = []byte("anchor-mock-pds")

type account struct {
	did      string
	handle   string
	password string
}

type entry struct {
	data []byte
	cid  string
}

// Mock is an in-memory PDS. It is safe for concurrent use.
type Mock struct {
	mu       sync.RWMutex
	accounts map[string]*account          // keyed by handle and by DID
	sessions map[string]string            // access token -> DID
	refresh  map[string]string            // refresh token -> DID
	records  map[string]map[string]map[string]entry // DID -> collection -> rkey
	failures map[string]int               // collection -> injected status
	now      func() time.Time
}

// Option configures the mock instance.
type Option func(*Mock)

// WithClock overrides the clock used for token expiry (useful in tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Mock) {
		if fn != nil {
			m.now = fn
		}
	}
}

// New creates an empty mock PDS.
func New(opts ...Option) *Mock {
	m := &Mock{
		accounts: make(map[string]*account),
		sessions: make(map[string]string),
		refresh:  make(map[string]string),
		records:  make(map[string]map[string]map[string]entry),
		failures: make(map[string]int),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ atclient.Transport = (*Mock)(nil)

// AddAccount registers an account reachable by handle or DID.
func (m *Mock) AddAccount(handle, did, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct := &account{did: did, handle: handle, password: password}
	m.accounts[handle] = acct
	m.accounts[did] = acct
}

// FailCollection makes every subsequent create for the collection fail with
// the given HTTP status. Used to exercise the compensation path.
func (m *Mock) FailCollection(collection string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[collection] = status
}

// ClearFailures removes all injected failures.
func (m *Mock) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = make(map[string]int)
}

// RecordCount reports how many records a repo holds in a collection.
func (m *Mock) RecordCount(did, collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records[did][collection])
}

// Send implements atclient.Transport.
func (m *Mock) Send(ctx context.Context, req *atclient.Request) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	switch req.NSID {
	case "com.atproto.server.createSession":
		return m.createSession(req)
	case "com.atproto.server.refreshSession":
		return m.refreshSession(req)
	case "com.atproto.repo.createRecord":
		return m.createRecord(req)
	case "com.atproto.repo.deleteRecord":
		return m.deleteRecord(req)
	case "com.atproto.repo.getRecord":
		return m.getRecord(req)
	default:
		return xrpcError(http.StatusNotFound, "MethodNotImplemented", req.NSID)
	}
}

func (m *Mock) createSession(req *atclient.Request) (int, []byte, error) {
	var body struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := decodeBody(req.Body, &body); err != nil {
		return xrpcError(http.StatusBadRequest, "InvalidRequest", err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[body.Identifier]
	if !ok || acct.password != body.Password {
		return xrpcError(http.StatusUnauthorized, "AuthenticationRequired", "invalid identifier or password")
	}
	return m.issueSession(acct)
}

func (m *Mock) refreshSession(req *atclient.Request) (int, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	did, ok := m.refresh[req.AccessToken]
	if !ok {
		return xrpcError(http.StatusUnauthorized, "ExpiredToken", "unknown refresh token")
	}
	delete(m.refresh, req.AccessToken)
	acct := m.accounts[did]
	if acct == nil {
		return xrpcError(http.StatusUnauthorized, "AuthenticationRequired", "account gone")
	}
	return m.issueSession(acct)
}

// issueSession mints a signed token pair. Callers must hold m.mu.
func (m *Mock) issueSession(acct *account) (int, []byte, error) {
	now := m.now()
	access, err := m.mintToken(acct.did, now.Add(2*time.Hour))
	if err != nil {
		return 0, nil, err
	}
	refreshTok, err := m.mintToken(acct.did, now.Add(90*24*time.Hour))
	if err != nil {
		return 0, nil, err
	}
	m.sessions[access] = acct.did
	m.refresh[refreshTok] = acct.did

	return jsonResponse(http.StatusOK, atclient.Session{
		DID:        acct.did,
		Handle:     acct.handle,
		AccessJWT:  access,
		RefreshJWT: refreshTok,
	})
}

func (m *Mock) mintToken(did string, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   did,
		IssuedAt:  jwt.NewNumericDate(m.now()),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        ids.New(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingSecret)
}

func (m *Mock) authenticate(token string) (string, bool) {
	did, ok := m.sessions[token]
	return did, ok
}

func (m *Mock) createRecord(req *atclient.Request) (int, []byte, error) {
	var body struct {
		Repo       string          `json:"repo"`
		Collection string          `json:"collection"`
		Record     json.RawMessage `json:"record"`
	}
	if err := decodeBody(req.Body, &body); err != nil {
		return xrpcError(http.StatusBadRequest, "InvalidRequest", err.Error())
	}
	if body.Repo == "" || body.Collection == "" || len(body.Record) == 0 {
		return xrpcError(http.StatusBadRequest, "InvalidRequest", "repo, collection and record are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	did, ok := m.authenticate(req.AccessToken)
	if !ok {
		return xrpcError(http.StatusUnauthorized, "AuthenticationRequired", "missing or unknown access token")
	}
	if body.Repo != did {
		return xrpcError(http.StatusForbidden, "InvalidRequest", "repo does not match authenticated DID")
	}
	if status, failing := m.failures[body.Collection]; failing {
		return xrpcError(status, "MockFailure", "injected failure for "+body.Collection)
	}

	collections := m.records[did]
	if collections == nil {
		collections = make(map[string]map[string]entry)
		m.records[did] = collections
	}
	bucket := collections[body.Collection]
	if bucket == nil {
		bucket = make(map[string]entry)
		collections[body.Collection] = bucket
	}

	rkey := ids.NewRecordKey()
	data := append([]byte(nil), body.Record...)
	bucket[rkey] = entry{data: data, cid: fakeCID(data)}

	return jsonResponse(http.StatusOK, atclient.StrongRef{
		URI: fmt.Sprintf("at://%s/%s/%s", did, body.Collection, rkey),
		CID: bucket[rkey].cid,
	})
}

func (m *Mock) deleteRecord(req *atclient.Request) (int, []byte, error) {
	var body struct {
		Repo       string `json:"repo"`
		Collection string `json:"collection"`
		Rkey       string `json:"rkey"`
	}
	if err := decodeBody(req.Body, &body); err != nil {
		return xrpcError(http.StatusBadRequest, "InvalidRequest", err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	did, ok := m.authenticate(req.AccessToken)
	if !ok {
		return xrpcError(http.StatusUnauthorized, "AuthenticationRequired", "missing or unknown access token")
	}
	if body.Repo != did {
		return xrpcError(http.StatusForbidden, "InvalidRequest", "repo does not match authenticated DID")
	}

	// Deleting an absent record succeeds: the endpoint is idempotent.
	if bucket := m.records[did][body.Collection]; bucket != nil {
		delete(bucket, body.Rkey)
	}
	return jsonResponse(http.StatusOK, struct{}{})
}

func (m *Mock) getRecord(req *atclient.Request) (int, []byte, error) {
	repo := req.Query.Get("repo")
	collection := req.Query.Get("collection")
	rkey := req.Query.Get("rkey")
	if repo == "" || collection == "" || rkey == "" {
		return xrpcError(http.StatusBadRequest, "InvalidRequest", "repo, collection and rkey are required")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.authenticate(req.AccessToken); !ok {
		return xrpcError(http.StatusUnauthorized, "AuthenticationRequired", "missing or unknown access token")
	}
	bucket := m.records[repo][collection]
	rec, ok := bucket[rkey]
	if !ok {
		return xrpcError(http.StatusBadRequest, "RecordNotFound", "could not locate record")
	}

	return jsonResponse(http.StatusOK, atclient.RecordResponse{
		URI:   fmt.Sprintf("at://%s/%s/%s", repo, collection, rkey),
		CID:   rec.cid,
		Value: json.RawMessage(rec.data),
	})
}

// fakeCID derives a stable content hash in CID clothing, so StrongRef
// verification behaves like the real store: same bytes, same CID.
func fakeCID(data []byte) string {
	sum := sha256.Sum256(data)
	return "bafyrei" + hex.EncodeToString(sum[:])[:46]
}

func decodeBody(body any, out any) error {
	if body == nil {
		return fmt.Errorf("request body is required")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func jsonResponse(status int, v any) (int, []byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, nil, err
	}
	return status, data, nil
}

func xrpcError(status int, name, message string) (int, []byte, error) {
	data, err := json.Marshal(struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}{Error: name, Message: message})
	if err != nil {
		return 0, nil, err
	}
	return status, data, nil
}
