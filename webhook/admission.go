package webhook

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"regexp"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// botUserAgentRegex matches known crawler and bot signatures.
var botUserAgentRegex = regexp.MustCompile(`(?i)(bot|crawler|spider|slurp|scrapy|headlesschrome|phantomjs|facebookexternalhit|bingpreview|mediapartners)`)

// admit runs the IP allowlist, bot filter and authentication checks. It
// returns false after writing a terminal response when the request is
// rejected; no payment work happens for rejected requests.
func (g *Gate) admit(w http.ResponseWriter, r *http.Request) bool {
	if g.config.IPAllowlist != "" {
		ok, err := ipAllowed(g.config.IPAllowlist, requestIPs(r))
		if err != nil {
			g.logger.Error("malformed IP allowlist", "error", err)
			writeConfigError(w, err.Error())
			return false
		}
		if !ok {
			g.logger.Warn("request IP not in allowlist", "remote", r.RemoteAddr)
			writePlain(w, http.StatusForbidden, "IP is not allowed to access the webhook!")
			return false
		}
	}

	if g.config.BotFilter && botUserAgentRegex.MatchString(r.Header.Get("User-Agent")) {
		g.logger.Warn("bot request rejected", "userAgent", r.Header.Get("User-Agent"))
		writePlain(w, http.StatusForbidden, "Request rejected: bot user agent detected")
		return false
	}

	return g.authenticate(w, r)
}

// requestIPs returns the direct client IP followed by any proxy-forwarded
// addresses from X-Forwarded-For.
func requestIPs(r *http.Request) []string {
	ips := make([]string, 0, 2)
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ips = append(ips, host)
	} else if r.RemoteAddr != "" {
		ips = append(ips, r.RemoteAddr)
	}
	for _, forwarded := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if trimmed := strings.TrimSpace(forwarded); trimmed != "" {
			ips = append(ips, trimmed)
		}
	}
	return ips
}

// ipAllowed reports whether any of the request's IPs matches an allowlist
// entry. Entries are exact addresses or CIDR ranges; range matching evaluates
// the network prefix, never string prefixes. A malformed entry is a
// configuration error.
func ipAllowed(allowlist string, requestIPs []string) (bool, error) {
	addrs := make([]netip.Addr, 0, len(requestIPs))
	for _, raw := range requestIPs {
		if addr, err := netip.ParseAddr(raw); err == nil {
			addrs = append(addrs, addr.Unmap())
		}
	}

	for _, entry := range strings.Split(allowlist, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return false, fmt.Errorf("invalid CIDR range %q in IP allowlist", entry)
			}
			for _, addr := range addrs {
				if prefix.Contains(addr) {
					return true, nil
				}
			}
			continue
		}

		allowed, err := netip.ParseAddr(entry)
		if err != nil {
			return false, fmt.Errorf("invalid IP address %q in IP allowlist", entry)
		}
		for _, addr := range addrs {
			if addr == allowed.Unmap() {
				return true, nil
			}
		}
	}

	return false, nil
}

func (g *Gate) authenticate(w http.ResponseWriter, r *http.Request) bool {
	auth := g.config.Auth

	switch auth.Mode {
	case AuthNone:
		return true

	case AuthBasic:
		if auth.User == "" && auth.Password == "" {
			writeConfigError(w, "no authentication data defined on webhook")
			return false
		}
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Webhook"`)
			writePlain(w, http.StatusUnauthorized, "Authorization is required!")
			return false
		}
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(auth.User)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(auth.Password)) == 1
		if !userOK || !passOK {
			writePlain(w, http.StatusForbidden, "Authorization data is wrong!")
			return false
		}
		return true

	case AuthHeader:
		if auth.HeaderName == "" {
			writeConfigError(w, "no authentication data defined on webhook")
			return false
		}
		got := r.Header.Get(auth.HeaderName)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(auth.HeaderValue)) != 1 {
			writePlain(w, http.StatusForbidden, "Authorization data is wrong!")
			return false
		}
		return true

	case AuthJWT:
		if auth.JWTSecret == "" {
			writeConfigError(w, "no authentication data defined on webhook")
			return false
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			writePlain(w, http.StatusForbidden, "Authorization data is wrong!")
			return false
		}
		_, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(auth.JWTSecret), nil
		})
		if err != nil {
			g.logger.Warn("jwt validation failed", "error", err)
			writePlain(w, http.StatusForbidden, "Authorization data is wrong!")
			return false
		}
		return true
	}

	writeConfigError(w, fmt.Sprintf("unsupported authentication mode %q", auth.Mode))
	return false
}
