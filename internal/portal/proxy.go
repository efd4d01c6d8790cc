package portal

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/R3E-Network/tenant_portal/internal/errors"
	internalhttputil "github.com/R3E-Network/tenant_portal/internal/httputil"
	"github.com/R3E-Network/tenant_portal/internal/logging"
)

// NewUpstreamProxy forwards requests to the page renderer at target. The
// inbound Host header is preserved so the renderer sees the tenant hostname,
// and X-Forwarded-{For,Host,Proto} are set.
func NewUpstreamProxy(target *url.URL, logger *logging.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		FlushInterval: 100 * time.Millisecond,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.WithContext(r.Context()).WithError(err).WithField("upstream", target.Host).Error("upstream request failed")
			internalhttputil.WriteError(w, r, errors.Upstream("upstream renderer", err))
		},
	}
}
