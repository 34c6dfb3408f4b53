package discovery

import (
	"context"
	"fmt"
)

// StaticResolver answers resolution queries from fixed maps. It backs the
// mock runtime mode and tests.
type StaticResolver struct {
	// Handles maps handle -> DID.
	Handles map[string]string
	// Endpoints maps DID -> PDS base URL.
	Endpoints map[string]string
}

var _ Resolver = (*StaticResolver)(nil)

func (s *StaticResolver) HandleToDID(ctx context.Context, handle string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	did, ok := s.Handles[handle]
	if !ok {
		return "", fmt.Errorf("discovery: unknown handle %q", handle)
	}
	return did, nil
}

func (s *StaticResolver) DIDToPDS(ctx context.Context, did string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	endpoint, ok := s.Endpoints[did]
	if !ok {
		return "", fmt.Errorf("discovery: unknown DID %q", did)
	}
	return endpoint, nil
}
