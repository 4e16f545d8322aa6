package console

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/nerrad567/catalog-session/internal/authapi"
)

// CatalogProxyPrefix is where the console forwards catalog API calls.
const CatalogProxyPrefix = "/api/catalog"

// NewCatalogProxy forwards requests under CatalogProxyPrefix to baseURL with
// the session's access token attached. A 401 from the API triggers one
// refresh and retry through authapi.BearerTransport.
func NewCatalogProxy(baseURL string, source authapi.TokenSource) (http.Handler, error) {
	target, err := url.Parse(baseURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("catalog proxy: invalid base URL %q", baseURL)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("Cookie")
		},
		Transport: &authapi.BearerTransport{Source: source},
		ErrorHandler: func(w http.ResponseWriter, _ *http.Request, _ error) {
			writeError(w, http.StatusBadGateway, ErrCodeNetworkUnavailable, "Unable to reach the server")
		},
	}
	return http.StripPrefix(CatalogProxyPrefix, proxy), nil
}

// requireSession rejects anonymous requests with 401.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.session.CurrentIdentity() == nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
