// Command anchor-sandbox runs a local fake PDS speaking the XRPC endpoints
// the SDK uses, backed by the in-memory mock. It exists so applications can
// be developed and demoed without a real PDS, and supports latency and
// failure injection to exercise the compensation path.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropanchor/anchor_sdk_go/internal/obs"
	"github.com/dropanchor/anchor_sdk_go/pkg/atclient"
	atmock "github.com/dropanchor/anchor_sdk_go/pkg/atclient/mock"
)

type failConfig struct {
	rate float64
	code int
}

const (
	defaultHandle   = "climber.example.social"
	defaultDID      = "did:plc:sandboxanchor"
	defaultPassword = "anchor"
)

func main() {
	addr := flag.String("addr", ":8787", "listen address")
	seedPath := flag.String("seed", "", "path to JSON seed for the mock PDS")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	flag.Parse()

	obs.Init()

	pds := atmock.New()
	if *seedPath != "" {
		seed, err := atmock.LoadSeed(*seedPath)
		if err != nil {
			log.Fatalf("load seed: %v", err)
		}
		if err := pds.ApplySeed(seed); err != nil {
			log.Fatalf("apply seed: %v", err)
		}
	} else {
		pds.AddAccount(defaultHandle, defaultDID, defaultPassword)
	}

	failCfg, err := parseFailConfig(*fail)
	if err != nil {
		log.Fatalf("parse fail flag: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/xrpc/", withMiddleware(*latency, failCfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveXRPC(w, r, pds)
	})))
	mux.Handle("/metrics", obs.Handler())

	server := &http.Server{
		Addr:    *addr,
		Handler: mux,
	}

	log.Printf("anchor-sandbox listening on %s", *addr)
	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	fmt.Println()
	fmt.Println("export ANCHOR_RUNTIME_MODE=http")
	fmt.Printf("export ANCHOR_PDS_URL=http://%s\n", host)
	if *seedPath == "" {
		fmt.Printf("# default account: %s / %s\n", defaultHandle, defaultPassword)
	}
	fmt.Println()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}

func serveXRPC(w http.ResponseWriter, r *http.Request, pds *atmock.Mock) {
	nsid := strings.TrimPrefix(r.URL.Path, "/xrpc/")

	req := &atclient.Request{
		Method: r.Method,
		NSID:   nsid,
		Query:  r.URL.Query(),
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		req.AccessToken = strings.TrimPrefix(auth, "Bearer ")
	}
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(body) > 0 {
			req.Body = json.RawMessage(body)
		}
	}

	status, body, err := pds.Send(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func withMiddleware(delay time.Duration, failCfg failConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}
		if failCfg.rate > 0 && rand.Float64() < failCfg.rate {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(failCfg.code)
			fmt.Fprintf(w, `{"error":"SandboxFailure","message":"injected failure"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseFailConfig(raw string) (failConfig, error) {
	cfg := failConfig{code: http.StatusInternalServerError}
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	for _, part := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch key {
		case "rate":
			rate, err := strconv.ParseFloat(value, 64)
			if err != nil || rate < 0 || rate > 1 {
				return failConfig{}, fmt.Errorf("invalid fail rate %q", value)
			}
			cfg.rate = rate
		case "code":
			code, err := strconv.Atoi(value)
			if err != nil || code < 400 || code > 599 {
				return failConfig{}, fmt.Errorf("invalid fail code %q", value)
			}
			cfg.code = code
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", key)
		}
	}
	return cfg, nil
}
