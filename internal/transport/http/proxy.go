package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"coursegate/pkg/platform/middleware/metadata"
)

// Passthrough forwards requests the gateway does not handle itself to the
// default origin, unmodified apart from forwarding headers.
type Passthrough struct {
	origin string
	client *http.Client
	logger *slog.Logger
}

// NewPassthrough builds the fallback proxy for the default origin.
func NewPassthrough(origin string, logger *slog.Logger) *Passthrough {
	return &Passthrough{
		origin: origin,
		client: &http.Client{
			Timeout: 30 * time.Second,
			// The origin's own redirects are relayed to the client, not
			// followed here.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// hop-by-hop headers are connection-scoped and must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func (p *Passthrough) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	url := p.origin + r.URL.Path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, r.Body)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	req.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	req.Header.Set("X-Forwarded-For", metadata.ClientIPFromRequest(r))
	req.Header.Set("X-Forwarded-Host", r.Host)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("passthrough to default origin failed", "path", r.URL.Path, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Warn("passthrough response copy interrupted", "path", r.URL.Path, "error", err)
	}
}
