// Package discovery maps a user-supplied identifier (handle or DID) to the
// PDS base URL that must receive a repository's requests.
//
// Resolution is a lookup chain, not a retryable transaction: handle to DID,
// then DID to the PDS endpoint declared in the DID document. Any failing step
// yields ErrNotFound with no partial success. A best-effort heuristic,
// GuessPDSFromHandle, exists for callers that cannot reach authoritative
// resolution; it never overrides a successful resolution.
package discovery
