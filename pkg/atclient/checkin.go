package atclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dropanchor/anchor_sdk_go/internal/obs"
)

// CreateCheckinWithAddress creates an address record and a checkin record
// referencing it, in that order. The two writes are not atomic on the PDS:
// when the checkin create fails, one best-effort delete of the just-created
// address is attempted so the repository does not accumulate unreferenced
// addresses. The delete's own failure is logged and counted, never
// propagated; the checkin create error is the one returned.
func (c *Client) CreateCheckinWithAddress(ctx context.Context, input CheckinInput, creds Credentials) (*StrongRef, error) {
	if strings.TrimSpace(creds.DID) == "" || creds.AccessToken == "" {
		return nil, fmt.Errorf("atclient: credentials require did and access token")
	}

	address := input.Address
	address.Type = CollectionAddress
	addrRef, err := c.CreateRecord(ctx, creds.DID, CollectionAddress, &address, creds.AccessToken)
	if err != nil {
		// Nothing created yet, nothing to compensate.
		return nil, err
	}

	coords := input.Coordinates
	coords.Type = TypeGeo
	checkin := CheckinRecord{
		Type:          CollectionCheckin,
		Text:          input.Text,
		CreatedAt:     c.now().UTC().Format(time.RFC3339),
		AddressRef:    *addrRef,
		Coordinates:   &coords,
		Category:      input.Category,
		CategoryGroup: input.CategoryGroup,
		CategoryIcon:  input.CategoryIcon,
	}

	ref, err := c.CreateRecord(ctx, creds.DID, CollectionCheckin, &checkin, creds.AccessToken)
	if err != nil {
		c.compensateAddress(ctx, addrRef, creds)
		return nil, err
	}
	return ref, nil
}

// compensateAddress issues exactly one delete for the address record created
// during a failed composite checkin. A failed delete leaves an orphan behind.
func (c *Client) compensateAddress(ctx context.Context, addrRef *StrongRef, creds Credentials) {
	var delErr error
	parsed, err := ParseATURI(addrRef.URI)
	if err != nil {
		delErr = err
	} else {
		delErr = c.DeleteRecord(ctx, parsed.Repo, parsed.Collection, parsed.Rkey, creds.AccessToken)
	}
	obs.ObserveCompensation(delErr != nil)
	if delErr != nil {
		c.logger.Warn("compensating address delete failed, orphaned record remains",
			"uri", addrRef.URI, "error", delErr)
	}
}

// VerifyStrongRef reports whether the record at ref.URI still carries the
// content hash captured in ref.CID. Verification is a predicate: a fetch
// failure of any kind reads as not verified, never as an error.
func (c *Client) VerifyStrongRef(ctx context.Context, ref StrongRef, creds Credentials) bool {
	rec, err := c.GetRecord(ctx, ref.URI, creds.AccessToken)
	if err != nil {
		return false
	}
	return rec.CID != "" && rec.CID == ref.CID
}

// ResolveCheckin fetches a checkin, follows its address StrongRef, and
// reports whether the reference still matches the live address content. A
// failed address fetch degrades to IsVerified=false with an empty address;
// a missing or undecodable checkin is an error.
func (c *Client) ResolveCheckin(ctx context.Context, uri string, creds Credentials) (*ResolvedCheckin, error) {
	rec, err := c.GetRecord(ctx, uri, creds.AccessToken)
	if err != nil {
		return nil, err
	}

	var checkin CheckinRecord
	if err := json.Unmarshal(rec.Value, &checkin); err != nil {
		return nil, fmt.Errorf("%w: checkin record: %v", ErrDecode, err)
	}
	if checkin.AddressRef.URI == "" {
		return nil, fmt.Errorf("%w: checkin record missing addressRef", ErrDecode)
	}

	resolved := &ResolvedCheckin{Checkin: checkin}

	addrRec, err := c.GetRecord(ctx, checkin.AddressRef.URI, creds.AccessToken)
	if err != nil {
		// Address deleted or unreachable: the checkin still resolves,
		// just unverified.
		return resolved, nil
	}
	var address AddressRecord
	if err := json.Unmarshal(addrRec.Value, &address); err != nil {
		return nil, fmt.Errorf("%w: address record: %v", ErrDecode, err)
	}
	resolved.Address = address
	resolved.IsVerified = addrRec.CID != "" && addrRec.CID == checkin.AddressRef.CID
	return resolved, nil
}
