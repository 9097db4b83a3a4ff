package ratelimit

import (
	"net"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// UnknownClient is shared by every caller whose origin cannot be resolved.
const UnknownClient ClientKey = "Unknown IP"

// forwardingHeaders are consulted in order when proxy headers are trusted.
var forwardingHeaders = []string{"X-Client-IP", "X-Forwarded-For", "X-Real-IP"}

// IdentityResolver derives the ClientKey of a request from its network origin.
type IdentityResolver struct {
	trustProxy bool
}

// NewIdentityResolver creates a resolver. When trustProxy is set the
// forwarding headers win over the transport address.
func NewIdentityResolver(trustProxy bool) *IdentityResolver {
	return &IdentityResolver{trustProxy: trustProxy}
}

// Resolve returns the caller's key, or UnknownClient when nothing resolves.
func (r *IdentityResolver) Resolve(ctx huma.Context) ClientKey {
	if r.trustProxy {
		for _, name := range forwardingHeaders {
			if ip := firstAddress(ctx.Header(name)); ip != "" {
				return ClientKey(ip)
			}
		}
	}

	if ip := stripPort(ctx.RemoteAddr()); ip != "" {
		return ClientKey(ip)
	}

	return UnknownClient
}

// firstAddress takes the original client out of a comma separated chain.
func firstAddress(value string) string {
	if idx := strings.Index(value, ","); idx != -1 {
		value = value[:idx]
	}

	return stripPort(strings.TrimSpace(value))
}

func stripPort(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.Trim(addr, "[]")
	}

	return host
}
