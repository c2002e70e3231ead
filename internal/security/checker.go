package security

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/obsidianstack/promcheck/pkg/types"
)

// ExpiryWarning is how close to expiry a certificate must be to warn.
const ExpiryWarning = 30 * 24 * time.Hour

const dialTimeout = 10 * time.Second

// Check dials the TLS endpoint behind url and inspects the leaf certificate.
// cfg carries the client certificate, CA pool and verification settings the
// endpoint is fetched with; nil means the system defaults.
//
// Returns nil for non-HTTPS endpoints, for certificates that are not close
// to expiry, and when the handshake fails; an unreachable endpoint is
// already reported by the fetch.
func Check(ctx context.Context, endpoint string, cfg *tls.Config) *types.Issue {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if cfg == nil {
		cfg = &tls.Config{}
	}
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    cfg.Clone(),
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		slog.Debug("security: tls dial failed", "endpoint", endpoint, "err", err)
		return nil
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		return nil
	}
	return inspect(peerCerts[0], time.Now())
}

// inspect grades leaf against now.
func inspect(leaf *x509.Certificate, now time.Time) *types.Issue {
	left := leaf.NotAfter.Sub(now)
	daysLeft := int(math.Floor(left.Hours() / 24))

	var iss types.Issue
	switch {
	case left <= 0:
		iss = types.Critical(types.CategoryTLS,
			fmt.Sprintf("TLS certificate expired on %s", leaf.NotAfter.UTC().Format(time.DateOnly)))
	case left <= ExpiryWarning:
		iss = types.Warning(types.CategoryTLS,
			fmt.Sprintf("TLS certificate expires in %d days", daysLeft))
	default:
		return nil
	}

	iss = iss.
		With("not_after", leaf.NotAfter.UTC().Format(time.RFC3339)).
		With("issuer", leaf.Issuer.CommonName).
		With("days_left", daysLeft)
	return &iss
}
