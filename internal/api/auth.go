package api

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"villa/internal/apperr"
	"villa/internal/config"
)

const (
	permAdminAffiliates = "admin:affiliates"
	clientKeyUnknown    = "unknown"
)

var (
	errMissingKey       = apperr.New(apperr.KindValidation, "unauthorized", "missing api key headers")
	errInvalidKey       = apperr.New(apperr.KindValidation, "unauthorized", "invalid api key")
	errPermissionDenied = apperr.New(apperr.KindValidation, "forbidden", "permission denied")
	errRateLimited      = apperr.New(apperr.KindValidation, "rate_limited", "rate limit exceeded")
	errCronForbidden    = apperr.New(apperr.KindValidation, "unauthorized", "missing or invalid cron trigger")
)

// AdminAuth guards admin endpoints with an API key pair, per-key permissions
// and a per-key rate limit.
type AdminAuth struct {
	cfg     config.APIAuthConfig
	clients map[string]config.APIClientKey
	limiter *rateLimiter
}

func NewAdminAuth(cfg config.APIConfig) *AdminAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &AdminAuth{cfg: cfg.Auth, clients: m, limiter: newRateLimiter(cfg.RateLimit)}
}

// Require wraps next so that only clients holding permission reach it.
func (a *AdminAuth) Require(permission string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.checkAuth(r, permission); err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, errPermissionDenied) {
				status = http.StatusForbidden
			}
			writeErrorStatus(w, status, err)
			return
		}
		if !a.limiter.allow(a.clientKey(r)) {
			writeErrorStatus(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *AdminAuth) checkAuth(r *http.Request, permission string) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.headerAPIKey()))
	extra := strings.TrimSpace(r.Header.Get(a.headerExtra()))
	if apiKey == "" || extra == "" {
		return errMissingKey
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return errInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errInvalidKey
	}

	return checkPermissions(client, permission)
}

// checkPermissions treats an empty permission list as allow-all.
func checkPermissions(client config.APIClientKey, required string) error {
	if required == "" || len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func (a *AdminAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.headerAPIKey())); apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func (a *AdminAuth) headerAPIKey() string {
	if h := strings.TrimSpace(a.cfg.HeaderAPIKey); h != "" {
		return h
	}
	return "x-api-key"
}

func (a *AdminAuth) headerExtra() string {
	if h := strings.TrimSpace(a.cfg.HeaderExtra); h != "" {
		return h
	}
	return "x-api-extra"
}

// cronGuard admits only callers presenting the shared scheduler secret.
func cronGuard(cfg config.CronConfig, next http.Handler) http.Handler {
	header := strings.TrimSpace(cfg.Header)
	if header == "" {
		header = "x-cron-trigger"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(r.Header.Get(header))
		if cfg.Secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(cfg.Secret)) != 1 {
			writeErrorStatus(w, http.StatusUnauthorized, errCronForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
