package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when any step of the resolution chain fails.
var ErrNotFound = errors.New("discovery: identity not found")

// managedHostingSuffix is the handle domain operated by the managed hosting
// provider; handles under it are always served by the provider's PDS.
const (
	managedHostingSuffix = ".bsky.social"
	managedHostingPDS    = "https://bsky.social"
)

// Resolver performs the two authoritative lookups of the chain. Both return
// an error when the identity cannot be resolved; partial answers do not
// exist.
type Resolver interface {
	HandleToDID(ctx context.Context, handle string) (string, error)
	DIDToPDS(ctx context.Context, did string) (string, error)
}

// Service orchestrates a Resolver into the identifier-to-PDS chain.
type Service struct {
	resolver Resolver
}

// New constructs a Service around the supplied resolver.
func New(r Resolver) *Service {
	return &Service{resolver: r}
}

// ResolvePDS turns a handle or DID into a PDS base URL. DIDs (prefix "did:")
// resolve directly; anything else is treated as a handle and resolved to a
// DID first.
func (s *Service) ResolvePDS(ctx context.Context, identifier string) (string, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrNotFound)
	}

	if strings.HasPrefix(id, "did:") {
		pds, err := s.resolver.DIDToPDS(ctx, id)
		if err != nil {
			return "", fmt.Errorf("%w: resolve DID %q: %v", ErrNotFound, id, err)
		}
		return pds, nil
	}

	did, err := s.resolver.HandleToDID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: resolve handle %q: %v", ErrNotFound, id, err)
	}
	pds, err := s.resolver.DIDToPDS(ctx, did)
	if err != nil {
		return "", fmt.Errorf("%w: resolve DID %q for handle %q: %v", ErrNotFound, did, id, err)
	}
	return pds, nil
}

// GuessPDSFromHandle derives a PDS URL from a handle's domain without
// consulting any resolver. Handles under the managed hosting domain map to
// the provider's well-known PDS; for everything else the leftmost label is
// stripped and the registrable domain used as the host. The guess is only
// for callers that skip authoritative resolution entirely.
func GuessPDSFromHandle(handle string) string {
	h := strings.ToLower(strings.TrimSpace(handle))
	h = strings.TrimSuffix(h, ".")
	if strings.HasSuffix(h, managedHostingSuffix) {
		return managedHostingPDS
	}
	if idx := strings.Index(h, "."); idx >= 0 && idx+1 < len(h) {
		return "https://" + h[idx+1:]
	}
	return "https://" + h
}
