// Package connectivity gates sync cycles on remote reachability so offline
// devices skip network work instead of burning retries.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"feltsync/internal/logging"
)

// Gate reports whether the remote endpoint is reachable right now.
type Gate interface {
	Online(ctx context.Context) bool
}

const probeTimeout = 5 * time.Second

// HTTPProbe checks reachability with a lightweight request against the remote
// base URL. Any HTTP response, including an error status, counts as online;
// only transport failures mean offline.
type HTTPProbe struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewHTTPProbe constructs a probe against the given base URL.
func NewHTTPProbe(baseURL string, logger *slog.Logger) *HTTPProbe {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HTTPProbe{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: probeTimeout},
		log:     logger,
	}
}

func (p *HTTPProbe) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug("connectivity probe failed", logging.Error(err))
		return false
	}
	resp.Body.Close()
	return true
}

// Static is a gate with a fixed answer, used by tests and the CLI's forced
// sync path.
type Static bool

func (s Static) Online(context.Context) bool { return bool(s) }
