package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

type AdminPolicy struct {
	// Paths guarded by the policy, matched by prefix.
	Paths []string
	// AllowedIPs holds CIDR ranges or single addresses.
	AllowedIPs []string
}

// WithAdminAccessControl limits the diagnostic endpoints to the configured
// client addresses. An empty allow list disables the check; a list whose
// entries are all invalid denies every client.
func WithAdminAccessControl(policy AdminPolicy, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		nets, configured := parseAllowList(policy.AllowedIPs, logger)
		if configured == 0 {
			logger.Info("admin access control is disabled")
			return next
		}
		if len(nets) == 0 {
			logger.Error("admin allow list has no valid entries, denying all clients", "entries", configured)
		} else {
			logger.Info("admin access control middleware enabled", "ranges", len(nets))
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !guarded(policy.Paths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if !isIPAllowed(nets, r.RemoteAddr) {
				logger.Warn("admin access denied",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, "access denied", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func guarded(paths []string, p string) bool {
	for _, prefix := range paths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// parseAllowList returns the valid ranges and the number of non-blank
// entries.
func parseAllowList(entries []string, logger *slog.Logger) ([]*net.IPNet, int) {
	var nets []*net.IPNet
	configured := 0
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		configured++
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil && ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			logger.Warn("ignoring invalid admin allow list entry", "entry", entry, "error", err)
			continue
		}
		nets = append(nets, n)
	}
	return nets, configured
}

func isIPAllowed(nets []*net.IPNet, remoteAddr string) bool {
	ip := net.ParseIP(clientIP(remoteAddr))
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
