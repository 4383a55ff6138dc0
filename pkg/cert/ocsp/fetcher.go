package ocsp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	stdocsp "golang.org/x/crypto/ocsp"

	"github.com/TaIos/mod-tls/pkg/engine"
)

const (
	ocspRequestType  = "application/ocsp-request"
	ocspResponseType = "application/ocsp-response"

	// responders answer small payloads; anything larger is bogus
	maxResponseBytes = 1 << 20
)

// HTTPFetcher queries the OCSP responder named in the certificate over
// HTTP POST.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher. A nil client gets a private one
// with a 10 second timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{client: client}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, key *engine.CertifiedKey) ([]byte, error) {
	if key.Leaf == nil || len(key.Leaf.OCSPServer) == 0 {
		return nil, fmt.Errorf("certificate names no OCSP responder")
	}
	issuer := issuerOf(key)
	if issuer == nil {
		return nil, fmt.Errorf("certificate chain carries no issuer")
	}

	reqDER, err := stdocsp.CreateRequest(key.Leaf, issuer, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot build ocsp request: %w", err)
	}

	var lastErr error
	for _, responder := range key.Leaf.OCSPServer {
		der, err := f.post(ctx, responder, reqDER)
		if err != nil {
			lastErr = err
			continue
		}
		return der, nil
	}
	return nil, lastErr
}

func (f *HTTPFetcher) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ocspRequestType)
	req.Header.Set("Accept", ocspResponseType)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("responder %s returned status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}
