package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ParseAllowlist parses a comma separated list of CIDR prefixes.
func ParseAllowlist(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, cidr := range strings.Split(raw, ",") {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid allowlist entry %q: %w", cidr, err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

// IPAllowlist rejects requests whose remote address is outside allow. An
// empty list lets everything through.
func IPAllowlist(allow []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(allow) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				WriteJSONError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			addr, err := netip.ParseAddr(host)
			if err != nil {
				WriteJSONError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			addr = addr.Unmap()

			for _, p := range allow {
				if p.Contains(addr) {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteJSONError(w, r, http.StatusForbidden, "forbidden")
		})
	}
}
