package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

// Credential identifies one gateway account.
type Credential struct {
	SystemID string
	Password string
}

// Fingerprint derives a stable cache key from the credential pair. The
// fingerprint is safe to log; the secret itself never is.
func (c Credential) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.SystemID + ":" + c.Password))
	return hex.EncodeToString(sum[:])
}

// ClientCache hands out provider client handles, at most one live client per
// credential fingerprint and client kind. Clients are constructed lazily on
// first use and kept for the lifetime of the process; credentials are assumed
// stable and low-cardinality, so there is no eviction.
type ClientCache struct {
	apiURL     string
	httpClient *http.Client
	logger     *slog.Logger

	mu            sync.Mutex
	sendClients   map[string]*SendClient
	reportClients map[string]*ReportClient
}

// NewClientCache creates an empty cache. If httpClient is nil a default client
// with a finite timeout is used; gateway calls must never block indefinitely.
func NewClientCache(apiURL string, httpClient *http.Client, logger *slog.Logger) *ClientCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &ClientCache{
		apiURL:        apiURL,
		httpClient:    httpClient,
		logger:        logger.With("component", "gateway_client_cache"),
		sendClients:   make(map[string]*SendClient),
		reportClients: make(map[string]*ReportClient),
	}
}

// SendClient returns the send-capable client for the credential, constructing
// and caching it on first use. Construct-and-publish happens under the cache
// lock, so concurrent callers with the same fingerprint observe exactly one
// construction and share the same handle.
func (c *ClientCache) SendClient(cred Credential) *SendClient {
	fingerprint := cred.Fingerprint()

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.sendClients[fingerprint]; ok {
		return client
	}

	c.logger.Debug("Constructing new gateway send client", "fingerprint", fingerprint)
	client := newSendClient(c.apiURL, cred, c.httpClient, c.logger)
	c.sendClients[fingerprint] = client
	return client
}

// ReportClient returns the delivery-report client for the credential. Cached
// independently from send clients; the two kinds share the same keying scheme.
func (c *ClientCache) ReportClient(cred Credential) *ReportClient {
	fingerprint := cred.Fingerprint()

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.reportClients[fingerprint]; ok {
		return client
	}

	c.logger.Debug("Constructing new gateway report client", "fingerprint", fingerprint)
	client := newReportClient(c.apiURL, cred, c.httpClient, c.logger)
	c.reportClients[fingerprint] = client
	return client
}
