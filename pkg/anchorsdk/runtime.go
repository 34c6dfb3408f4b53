package anchorsdk

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/dropanchor/anchor_sdk_go/pkg/atclient"
	atmock "github.com/dropanchor/anchor_sdk_go/pkg/atclient/mock"
	"github.com/dropanchor/anchor_sdk_go/pkg/discovery"
)

const (
	envMode         = "ANCHOR_RUNTIME_MODE"
	envPDSURL       = "ANCHOR_PDS_URL"
	envHandleSvcURL = "ANCHOR_HANDLE_SERVICE_URL"
	envPLCURL       = "ANCHOR_PLC_DIRECTORY_URL"
	envMockSeed     = "ANCHOR_MOCK_SEED"

	modeAuto = "auto"
	modeHTTP = "http"
	modeMock = "mock"
)

// Config carries everything the SDK's components need. A zero value plus
// PDSURL is a working configuration.
type Config struct {
	// PDSURL is the base URL of the PDS receiving record operations.
	PDSURL string
	// HandleServiceURL overrides the XRPC service used for handle
	// resolution (default: the public AppView).
	HandleServiceURL string
	// PLCDirectoryURL overrides the PLC directory (default: plc.directory).
	PLCDirectoryURL string
	// HTTPClient, when set, is shared by the record client and resolver.
	HTTPClient *http.Client
	// Logger, when set, receives the record client's compensation warnings.
	Logger *slog.Logger
}

// NewClients constructs the record client and the discovery service from an
// explicit configuration.
func (c Config) NewClients() (*atclient.Client, *discovery.Service, error) {
	if strings.TrimSpace(c.PDSURL) == "" {
		return nil, nil, fmt.Errorf("anchorsdk: PDSURL is required")
	}

	var clientOpts []atclient.Option
	if c.HTTPClient != nil {
		clientOpts = append(clientOpts, atclient.WithHTTPClient(c.HTTPClient))
	}
	if c.Logger != nil {
		clientOpts = append(clientOpts, atclient.WithLogger(c.Logger))
	}
	client, err := atclient.New(c.PDSURL, clientOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("anchorsdk: init record client: %w", err)
	}

	var resolverOpts []discovery.ResolverOption
	if c.HTTPClient != nil {
		resolverOpts = append(resolverOpts, discovery.WithHTTPClient(c.HTTPClient))
	}
	if c.HandleServiceURL != "" {
		resolverOpts = append(resolverOpts, discovery.WithHandleService(c.HandleServiceURL))
	}
	if c.PLCDirectoryURL != "" {
		resolverOpts = append(resolverOpts, discovery.WithPLCDirectory(c.PLCDirectoryURL))
	}
	svc := discovery.New(discovery.NewHTTPResolver(resolverOpts...))

	return client, svc, nil
}

// NewFromEnv initialises the record client and discovery service based on
// Anchor environment variables and returns the resolved mode ("http" or
// "mock").
func NewFromEnv() (*atclient.Client, *discovery.Service, string, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(envMode)))
	pdsURL := strings.TrimSpace(os.Getenv(envPDSURL))

	switch mode {
	case "", modeAuto:
		if pdsURL != "" {
			return newHTTPClients(pdsURL)
		}
		return newMockClients()
	case modeHTTP:
		if pdsURL == "" {
			return nil, nil, "", fmt.Errorf("anchorsdk: HTTP mode requires %s", envPDSURL)
		}
		return newHTTPClients(pdsURL)
	case modeMock:
		return newMockClients()
	default:
		return nil, nil, "", fmt.Errorf("anchorsdk: unsupported %s value %q", envMode, mode)
	}
}

func newHTTPClients(pdsURL string) (*atclient.Client, *discovery.Service, string, error) {
	cfg := Config{
		PDSURL:           pdsURL,
		HandleServiceURL: strings.TrimSpace(os.Getenv(envHandleSvcURL)),
		PLCDirectoryURL:  strings.TrimSpace(os.Getenv(envPLCURL)),
	}
	client, svc, err := cfg.NewClients()
	if err != nil {
		return nil, nil, "", err
	}
	return client, svc, modeHTTP, nil
}

func newMockClients() (*atclient.Client, *discovery.Service, string, error) {
	pds := atmock.New()
	resolver := &discovery.StaticResolver{
		Handles:   make(map[string]string),
		Endpoints: make(map[string]string),
	}

	if path := strings.TrimSpace(os.Getenv(envMockSeed)); path != "" {
		seed, err := atmock.LoadSeed(path)
		if err != nil {
			return nil, nil, "", fmt.Errorf("anchorsdk: load mock seed: %w", err)
		}
		if err := pds.ApplySeed(seed); err != nil {
			return nil, nil, "", fmt.Errorf("anchorsdk: apply mock seed: %w", err)
		}
		for _, acct := range seed.Accounts {
			resolver.Handles[acct.Handle] = acct.DID
			resolver.Endpoints[acct.DID] = "mock://pds"
		}
	}

	return atclient.NewWithTransport(pds), discovery.New(resolver), modeMock, nil
}
