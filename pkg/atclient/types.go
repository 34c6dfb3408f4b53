package atclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Lexicon identifiers for the record shapes handled by this package.
const (
	CollectionCheckin = "app.dropanchor.checkin"
	CollectionAddress = "community.lexicon.location.address"
	TypeGeo           = "community.lexicon.location.geo"
)

var (
	// ErrInvalidURL reports a malformed AT-URI or base URL.
	ErrInvalidURL = errors.New("atclient: invalid URL")
	// ErrInvalidResponse reports a transport failure before a usable
	// HTTP response was obtained.
	ErrInvalidResponse = errors.New("atclient: invalid response")
	// ErrDecode reports a response body that did not match the expected
	// schema.
	ErrDecode = errors.New("atclient: decode response")
	// ErrAuthenticationFailed reports a rejected login or refresh.
	ErrAuthenticationFailed = errors.New("atclient: authentication failed")
)

// Session is the result of a successful createSession or refreshSession call.
type Session struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	Email      string `json:"email,omitempty"`
	AccessJWT  string `json:"accessJwt"`
	RefreshJWT string `json:"refreshJwt"`
}

// Credentials carries the authentication material for one repository. The
// client treats it as an immutable value per call; it is never mutated or
// persisted here. ExpiresAt is advisory: the client does not refresh tokens
// itself, even on 401.
type Credentials struct {
	DID          string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// StrongRef is an immutable reference to a specific version of a record:
// URI identifies which record, CID which exact content was referenced.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// AddressRecord is a community.lexicon.location.address record.
type AddressRecord struct {
	Type       string `json:"$type,omitempty"`
	Name       string `json:"name,omitempty"`
	Street     string `json:"street,omitempty"`
	Locality   string `json:"locality,omitempty"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// GeoCoordinates is a community.lexicon.location.geo payload. The lexicon
// encodes latitude and longitude as strings; numeric forms are accepted on
// decode for tolerance.
type GeoCoordinates struct {
	Type      string
	Latitude  float64
	Longitude float64
}

type geoWire struct {
	Type      string          `json:"$type,omitempty"`
	Latitude  json.RawMessage `json:"latitude"`
	Longitude json.RawMessage `json:"longitude"`
}

// MarshalJSON encodes coordinates with string latitude/longitude.
func (g GeoCoordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"$type,omitempty"`
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	}{
		Type:      g.Type,
		Latitude:  strconv.FormatFloat(g.Latitude, 'f', -1, 64),
		Longitude: strconv.FormatFloat(g.Longitude, 'f', -1, 64),
	})
}

// UnmarshalJSON decodes coordinates from either string or number form.
func (g *GeoCoordinates) UnmarshalJSON(data []byte) error {
	var wire geoWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	lat, err := parseCoordinate(wire.Latitude)
	if err != nil {
		return fmt.Errorf("latitude: %w", err)
	}
	lng, err := parseCoordinate(wire.Longitude)
	if err != nil {
		return fmt.Errorf("longitude: %w", err)
	}
	g.Type = wire.Type
	g.Latitude = lat
	g.Longitude = lng
	return nil
}

func parseCoordinate(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing value")
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strconv.ParseFloat(asString, 64)
	}
	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err != nil {
		return 0, err
	}
	return asNumber, nil
}

// CheckinRecord is an app.dropanchor.checkin record. It depends on exactly
// one address record, expressed purely via AddressRef; the store enforces no
// foreign key.
type CheckinRecord struct {
	Type          string          `json:"$type,omitempty"`
	Text          string          `json:"text"`
	CreatedAt     string          `json:"createdAt"`
	AddressRef    StrongRef       `json:"addressRef"`
	Coordinates   *GeoCoordinates `json:"coordinates,omitempty"`
	Category      string          `json:"category,omitempty"`
	CategoryGroup string          `json:"categoryGroup,omitempty"`
	CategoryIcon  string          `json:"categoryIcon,omitempty"`
}

// RecordResponse is the raw result of a getRecord call.
type RecordResponse struct {
	URI   string          `json:"uri"`
	CID   string          `json:"cid"`
	Value json.RawMessage `json:"value"`
}

// ResolvedCheckin is a read-time composition of a checkin, its referenced
// address, and the integrity status of the reference. It has no persistent
// identity and is constructed fresh per read.
type ResolvedCheckin struct {
	Checkin    CheckinRecord
	Address    AddressRecord
	IsVerified bool
}

// CheckinInput carries the caller-supplied fields for a composite checkin
// create.
type CheckinInput struct {
	Text          string
	Address       AddressRecord
	Coordinates   GeoCoordinates
	Category      string
	CategoryGroup string
	CategoryIcon  string
}
