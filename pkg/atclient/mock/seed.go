package mock

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// SeedAccount declares an account available for createSession.
type SeedAccount struct {
	Handle   string `json:"handle"`
	DID      string `json:"did"`
	Password string `json:"password"`
}

// SeedRecord declares a record pre-loaded into a repo.
type SeedRecord struct {
	Repo       string          `json:"repo"`
	Collection string          `json:"collection"`
	Rkey       string          `json:"rkey"`
	Value      json.RawMessage `json:"value"`
}

// Seed is the JSON document accepted by LoadSeed.
type Seed struct {
	Accounts []SeedAccount `json:"accounts"`
	Records  []SeedRecord  `json:"records"`
}

// LoadSeed reads a seed file from disk.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mock pds: read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("mock pds: parse seed: %w", err)
	}
	return &seed, nil
}

// ApplySeed loads accounts and records into the mock.
func (m *Mock) ApplySeed(seed *Seed) error {
	if seed == nil {
		return nil
	}
	for _, acct := range seed.Accounts {
		if strings.TrimSpace(acct.Handle) == "" || strings.TrimSpace(acct.DID) == "" {
			return fmt.Errorf("mock pds: seed account missing handle or did")
		}
		m.AddAccount(acct.Handle, acct.DID, acct.Password)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range seed.Records {
		if rec.Repo == "" || rec.Collection == "" || rec.Rkey == "" {
			return fmt.Errorf("mock pds: seed record missing repo, collection or rkey")
		}
		if len(rec.Value) == 0 {
			return fmt.Errorf("mock pds: seed record %s/%s/%s missing value", rec.Repo, rec.Collection, rec.Rkey)
		}
		collections := m.records[rec.Repo]
		if collections == nil {
			collections = make(map[string]map[string]entry)
			m.records[rec.Repo] = collections
		}
		bucket := collections[rec.Collection]
		if bucket == nil {
			bucket = make(map[string]entry)
			collections[rec.Collection] = bucket
		}
		data := append([]byte(nil), rec.Value...)
		bucket[rec.Rkey] = entry{data: data, cid: fakeCID(data)}
	}
	return nil
}
