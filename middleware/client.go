package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// DeviceIDHeader carries a client-chosen device identifier.
const DeviceIDHeader = "X-Device-ID"

// maxDeviceIDLen bounds what a client can put on a session record.
const maxDeviceIDLen = 128

// ClientContext attaches the client IP, User-Agent and device id to the
// request context. Put chi's RealIP (or an equivalent) in front of it when
// running behind a proxy.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ip := ClientIP(r); ip != "" {
			ctx = authcore.WithClientIP(ctx, ip)
		}
		if ua := r.UserAgent(); ua != "" {
			ctx = authcore.WithUserAgent(ctx, ua)
		}
		if id := strings.TrimSpace(r.Header.Get(DeviceIDHeader)); id != "" && len(id) <= maxDeviceIDLen {
			ctx = authcore.WithDeviceID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
