package atclient

import (
	"fmt"
	"strings"
)

const atURIPrefix = "at://"

// ATURI is a parsed record identifier of the form
// at://<repo>/<collection>/<rkey>.
type ATURI struct {
	Repo       string
	Collection string
	Rkey       string
}

func (u ATURI) String() string {
	return atURIPrefix + u.Repo + "/" + u.Collection + "/" + u.Rkey
}

// ParseATURI validates and splits an AT-URI. The URI must carry exactly the
// repo, collection, and rkey segments, all non-empty; anything else fails
// with ErrInvalidURL.
func ParseATURI(s string) (ATURI, error) {
	if !strings.HasPrefix(s, atURIPrefix) {
		return ATURI{}, fmt.Errorf("%w: %q missing at:// prefix", ErrInvalidURL, s)
	}
	rest := strings.TrimPrefix(s, atURIPrefix)
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return ATURI{}, fmt.Errorf("%w: %q must have exactly repo/collection/rkey segments", ErrInvalidURL, s)
	}
	for _, p := range parts {
		if p == "" {
			return ATURI{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidURL, s)
		}
	}
	return ATURI{Repo: parts[0], Collection: parts[1], Rkey: parts[2]}, nil
}
