package atclient_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dropanchor/anchor_sdk_go/pkg/atclient"
)

var testCreds = atclient.Credentials{
	DID:         "did:plc:abc",
	AccessToken: "token-1",
}

const (
	addrURI = "at://did:plc:abc/community.lexicon.location.address/addrkey"
	addrCID = "bafyreiaddress"
)

type createRecordBody struct {
	Repo       string          `json:"repo"`
	Collection string          `json:"collection"`
	Record     json.RawMessage `json:"record"`
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateCheckinWithAddressSuccess(t *testing.T) {
	ft := &fakeTransport{}
	ft.handle = func(req *atclient.Request) (int, []byte, error) {
		if req.NSID != "com.atproto.repo.createRecord" {
			t.Fatalf("unexpected NSID %q", req.NSID)
		}
		var body createRecordBody
		if err := json.Unmarshal(jsonBody(req.Body), &body); err != nil {
			t.Fatalf("decode create body: %v", err)
		}
		switch body.Collection {
		case atclient.CollectionAddress:
			return http.StatusOK, jsonBody(atclient.StrongRef{URI: addrURI, CID: addrCID}), nil
		case atclient.CollectionCheckin:
			return http.StatusOK, jsonBody(atclient.StrongRef{
				URI: "at://did:plc:abc/app.dropanchor.checkin/checkinkey",
				CID: "bafyreicheckin",
			}), nil
		default:
			t.Fatalf("unexpected collection %q", body.Collection)
			return 0, nil, nil
		}
	}

	fixed := time.Date(2026, 8, 30, 18, 4, 5, 0, time.UTC)
	client := atclient.NewWithTransport(ft,
		atclient.WithLogger(quietLogger()),
		atclient.WithClock(func() time.Time { return fixed }))

	ref, err := client.CreateCheckinWithAddress(context.Background(), atclient.CheckinInput{
		Text:        "Great climbing session!",
		Address:     atclient.AddressRecord{Name: "Klimmuur Centraal", Locality: "Den Haag", Country: "NL"},
		Coordinates: atclient.GeoCoordinates{Latitude: 52.0808732, Longitude: 4.3629474},
		Category:    "climbing",
	}, testCreds)
	if err != nil {
		t.Fatalf("CreateCheckinWithAddress: %v", err)
	}
	if !strings.HasPrefix(ref.URI, "at://did:plc:abc/app.dropanchor.checkin/") {
		t.Fatalf("checkin URI = %q", ref.URI)
	}

	creates := ft.callsFor("com.atproto.repo.createRecord")
	if len(creates) != 2 {
		t.Fatalf("create calls = %d, want exactly 2", len(creates))
	}
	if deletes := ft.callsFor("com.atproto.repo.deleteRecord"); len(deletes) != 0 {
		t.Fatalf("delete calls = %d, want 0 on success", len(deletes))
	}

	// The checkin must reference the address exactly as returned by the
	// first create.
	var second createRecordBody
	if err := json.Unmarshal(creates[1].body, &second); err != nil {
		t.Fatalf("decode checkin create: %v", err)
	}
	var checkin atclient.CheckinRecord
	if err := json.Unmarshal(second.Record, &checkin); err != nil {
		t.Fatalf("decode checkin record: %v", err)
	}
	if checkin.AddressRef.URI != addrURI || checkin.AddressRef.CID != addrCID {
		t.Fatalf("addressRef = %+v", checkin.AddressRef)
	}
	if checkin.Type != atclient.CollectionCheckin {
		t.Fatalf("$type = %q", checkin.Type)
	}
	if checkin.CreatedAt != fixed.Format(time.RFC3339) {
		t.Fatalf("createdAt = %q", checkin.CreatedAt)
	}
	if checkin.Coordinates == nil || checkin.Coordinates.Latitude != 52.0808732 {
		t.Fatalf("coordinates = %+v", checkin.Coordinates)
	}
	if !strings.Contains(string(second.Record), `"latitude":"52.0808732"`) {
		t.Fatalf("coordinates not string-encoded: %s", second.Record)
	}
}

func TestCreateCheckinAddressFailureAbortsImmediately(t *testing.T) {
	ft := &fakeTransport{handle: func(req *atclient.Request) (int, []byte, error) {
		return http.StatusServiceUnavailable, []byte(`{"error":"Unavailable"}`), nil
	}}
	client := atclient.NewWithTransport(ft, atclient.WithLogger(quietLogger()))

	_, err := client.CreateCheckinWithAddress(context.Background(), atclient.CheckinInput{Text: "x"}, testCreds)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(ft.calls) != 1 {
		t.Fatalf("calls = %d, want 1 (nothing to compensate)", len(ft.calls))
	}
}

func TestCreateCheckinCompensatesOnCheckinFailure(t *testing.T) {
	for _, deleteFails := range []bool{false, true} {
		name := "delete succeeds"
		if deleteFails {
			name = "delete fails too"
		}
		t.Run(name, func(t *testing.T) {
			ft := &fakeTransport{}
			ft.handle = func(req *atclient.Request) (int, []byte, error) {
				switch req.NSID {
				case "com.atproto.repo.createRecord":
					var body createRecordBody
					if err := json.Unmarshal(jsonBody(req.Body), &body); err != nil {
						t.Fatalf("decode create body: %v", err)
					}
					if body.Collection == atclient.CollectionAddress {
						return http.StatusOK, jsonBody(atclient.StrongRef{URI: addrURI, CID: addrCID}), nil
					}
					return http.StatusInternalServerError, []byte(`{"error":"InternalError"}`), nil
				case "com.atproto.repo.deleteRecord":
					if deleteFails {
						return http.StatusBadGateway, []byte(`{"error":"UpstreamFailure"}`), nil
					}
					return http.StatusOK, []byte(`{}`), nil
				default:
					t.Fatalf("unexpected NSID %q", req.NSID)
					return 0, nil, nil
				}
			}
			client := atclient.NewWithTransport(ft, atclient.WithLogger(quietLogger()))

			_, err := client.CreateCheckinWithAddress(context.Background(), atclient.CheckinInput{
				Text: "orphan candidate",
			}, testCreds)
			if err == nil {
				t.Fatal("expected the checkin create error")
			}

			// The original checkin-create failure is returned, never
			// the delete outcome.
			status, ok := atclient.StatusCode(err)
			if !ok || status != http.StatusInternalServerError {
				t.Fatalf("StatusCode = %d, %v; want 500", status, ok)
			}

			deletes := ft.callsFor("com.atproto.repo.deleteRecord")
			if len(deletes) != 1 {
				t.Fatalf("delete calls = %d, want exactly 1", len(deletes))
			}
			var sent struct {
				Repo       string `json:"repo"`
				Collection string `json:"collection"`
				Rkey       string `json:"rkey"`
			}
			if err := json.Unmarshal(deletes[0].body, &sent); err != nil {
				t.Fatalf("decode delete body: %v", err)
			}
			if sent.Repo != "did:plc:abc" || sent.Collection != atclient.CollectionAddress || sent.Rkey != "addrkey" {
				t.Fatalf("delete targeted %+v", sent)
			}
		})
	}
}

func TestVerifyStrongRef(t *testing.T) {
	ref := atclient.StrongRef{URI: addrURI, CID: addrCID}

	cases := []struct {
		name   string
		handle func(req *atclient.Request) (int, []byte, error)
		want   bool
	}{
		{
			name: "hash matches",
			handle: func(req *atclient.Request) (int, []byte, error) {
				return http.StatusOK, jsonBody(atclient.RecordResponse{
					URI: addrURI, CID: addrCID, Value: json.RawMessage(`{}`),
				}), nil
			},
			want: true,
		},
		{
			name: "hash mismatch",
			handle: func(req *atclient.Request) (int, []byte, error) {
				return http.StatusOK, jsonBody(atclient.RecordResponse{
					URI: addrURI, CID: "bafyreichanged", Value: json.RawMessage(`{}`),
				}), nil
			},
			want: false,
		},
		{
			name: "record deleted",
			handle: func(req *atclient.Request) (int, []byte, error) {
				return http.StatusBadRequest, []byte(`{"error":"RecordNotFound"}`), nil
			},
			want: false,
		},
		{
			name: "transport failure",
			handle: func(req *atclient.Request) (int, []byte, error) {
				return 0, nil, context.DeadlineExceeded
			},
			want: false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			client := atclient.NewWithTransport(&fakeTransport{handle: tc.handle})
			if got := client.VerifyStrongRef(context.Background(), ref, testCreds); got != tc.want {
				t.Fatalf("VerifyStrongRef = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolveCheckin(t *testing.T) {
	checkinURI := "at://did:plc:abc/app.dropanchor.checkin/checkinkey"
	checkinValue := jsonBody(atclient.CheckinRecord{
		Type:       atclient.CollectionCheckin,
		Text:       "Great climbing session!",
		CreatedAt:  "2026-08-30T18:04:05Z",
		AddressRef: atclient.StrongRef{URI: addrURI, CID: addrCID},
		Category:   "climbing",
	})
	addressValue := jsonBody(atclient.AddressRecord{
		Type: atclient.CollectionAddress, Name: "Klimmuur Centraal", Locality: "Den Haag",
	})

	newHandler := func(addrStatus int, liveAddrCID string) func(req *atclient.Request) (int, []byte, error) {
		return func(req *atclient.Request) (int, []byte, error) {
			switch req.Query.Get("collection") {
			case atclient.CollectionCheckin:
				return http.StatusOK, jsonBody(atclient.RecordResponse{
					URI: checkinURI, CID: "bafyreicheckin", Value: checkinValue,
				}), nil
			case atclient.CollectionAddress:
				if addrStatus != http.StatusOK {
					return addrStatus, []byte(`{"error":"RecordNotFound"}`), nil
				}
				return http.StatusOK, jsonBody(atclient.RecordResponse{
					URI: addrURI, CID: liveAddrCID, Value: addressValue,
				}), nil
			default:
				t.Fatalf("unexpected collection %q", req.Query.Get("collection"))
				return 0, nil, nil
			}
		}
	}

	t.Run("verified", func(t *testing.T) {
		client := atclient.NewWithTransport(&fakeTransport{handle: newHandler(http.StatusOK, addrCID)})
		resolved, err := client.ResolveCheckin(context.Background(), checkinURI, testCreds)
		if err != nil {
			t.Fatalf("ResolveCheckin: %v", err)
		}
		if !resolved.IsVerified {
			t.Fatal("IsVerified = false, want true")
		}
		if resolved.Checkin.Text != "Great climbing session!" {
			t.Fatalf("checkin = %+v", resolved.Checkin)
		}
		if resolved.Address.Name != "Klimmuur Centraal" {
			t.Fatalf("address = %+v", resolved.Address)
		}
	})

	t.Run("address hash changed", func(t *testing.T) {
		client := atclient.NewWithTransport(&fakeTransport{handle: newHandler(http.StatusOK, "bafyreichanged")})
		resolved, err := client.ResolveCheckin(context.Background(), checkinURI, testCreds)
		if err != nil {
			t.Fatalf("ResolveCheckin: %v", err)
		}
		if resolved.IsVerified {
			t.Fatal("IsVerified = true for a changed address")
		}
	})

	t.Run("address deleted", func(t *testing.T) {
		client := atclient.NewWithTransport(&fakeTransport{handle: newHandler(http.StatusBadRequest, "")})
		resolved, err := client.ResolveCheckin(context.Background(), checkinURI, testCreds)
		if err != nil {
			t.Fatalf("ResolveCheckin: %v", err)
		}
		if resolved.IsVerified {
			t.Fatal("IsVerified = true for a missing address")
		}
		if resolved.Checkin.Text != "Great climbing session!" {
			t.Fatalf("checkin should still resolve, got %+v", resolved.Checkin)
		}
	})

	t.Run("checkin missing", func(t *testing.T) {
		client := atclient.NewWithTransport(&fakeTransport{handle: func(req *atclient.Request) (int, []byte, error) {
			return http.StatusBadRequest, []byte(`{"error":"RecordNotFound"}`), nil
		}})
		if _, err := client.ResolveCheckin(context.Background(), checkinURI, testCreds); err == nil {
			t.Fatal("expected error for a missing checkin")
		}
	})
}

func TestCheckinRecordRoundTrip(t *testing.T) {
	original := atclient.CheckinRecord{
		Type:       atclient.CollectionCheckin,
		Text:       "Great climbing session!",
		CreatedAt:  "2026-08-30T18:04:05Z",
		AddressRef: atclient.StrongRef{URI: addrURI, CID: addrCID},
		Coordinates: &atclient.GeoCoordinates{
			Type:      atclient.TypeGeo,
			Latitude:  52.0808732,
			Longitude: 4.3629474,
		},
		Category:      "climbing",
		CategoryGroup: "sports",
		CategoryIcon:  "🧗",
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded atclient.CheckinRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Text != original.Text || decoded.CreatedAt != original.CreatedAt ||
		decoded.AddressRef != original.AddressRef ||
		decoded.Category != original.Category ||
		decoded.CategoryGroup != original.CategoryGroup ||
		decoded.CategoryIcon != original.CategoryIcon {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if *decoded.Coordinates != *original.Coordinates {
		t.Fatalf("coordinates mismatch: %+v", decoded.Coordinates)
	}
}

func TestGeoCoordinatesAcceptsNumericForm(t *testing.T) {
	var g atclient.GeoCoordinates
	if err := json.Unmarshal([]byte(`{"latitude":52.5,"longitude":-4.25}`), &g); err != nil {
		t.Fatalf("unmarshal numeric: %v", err)
	}
	if g.Latitude != 52.5 || g.Longitude != -4.25 {
		t.Fatalf("coordinates = %+v", g)
	}
}
