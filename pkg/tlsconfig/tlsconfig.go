// Package tlsconfig provides helpers and constants for SSL/TLS configuration,
// used both to build the version/cipher profile and, for the server side, to
// turn a certificate/key pair plus an optional client-CA directory into the
// *tls.Config the TCP server core (C8) wraps its listener with per spec §4.8.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
)

// ServerProfile describes the spec §4.8 requirement: "a TLS 1.3-only context
// from PEM key + cert (or cert-chain file), optional CA directory for peer
// verification, sets verify-depth 4, disables compression, enables
// cipher-server-preference."
type ServerProfile struct {
	CertFile     string
	KeyFile      string
	ClientCADir  string // optional; enables mutual TLS when set
	VersionRange VersionProfile
}

// NewServerConfig builds a server-side tls.Config per ServerProfile. Go's
// crypto/tls never negotiates a compression method, so "disables
// compression" is satisfied unconditionally by the standard library; verify
// depth is enforced by VerifyPeerCertificate since crypto/tls itself has no
// depth knob.
func NewServerConfig(p ServerProfile) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(p.CertFile, p.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsconfig: loading server certificate: %w", err)
	}

	profile := p.VersionRange
	if profile.Min == 0 {
		profile = ProfileModern
	}

	cfg := &tls.Config{
		Certificates:             []tls.Certificate{cert},
		PreferServerCipherSuites: true,
	}
	ApplyVersionProfile(cfg, profile)
	ApplyCipherSuites(cfg, profile.Min)

	if p.ClientCADir != "" {
		pool, err := loadCertDir(p.ClientCADir)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.VerifyClientCertIfGiven
		cfg.VerifyPeerCertificate = verifyDepth(4)
	}

	return cfg, nil
}

// loadCertDir reads every PEM file in dir into a single certificate pool,
// the server-side analogue of the teacher's CustomCACerts loading.
func loadCertDir(dir string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("tlsconfig: reading client CA directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("tlsconfig: reading %s: %w", entry.Name(), err)
		}
		pool.AppendCertsFromPEM(data)
	}
	return pool, nil
}

// verifyDepth rejects chains deeper than max intermediate+leaf certificates,
// since crypto/tls has no native verify-depth configuration.
func verifyDepth(max int) func([][]byte, [][]*x509.Certificate) error {
	return func(_ [][]byte, chains [][]*x509.Certificate) error {
		for _, chain := range chains {
			if len(chain) > max {
				return fmt.Errorf("tlsconfig: certificate chain depth %d exceeds maximum %d", len(chain), max)
			}
		}
		return nil
	}
}

// TLS protocol versions usable in a VersionProfile range. Anything below
// TLS 1.2 is deprecated and only offered for peers that cannot do better.
const (
	VersionTLS10 uint16 = tls.VersionTLS10
	VersionTLS11 uint16 = tls.VersionTLS11
	VersionTLS12 uint16 = tls.VersionTLS12
	VersionTLS13 uint16 = tls.VersionTLS13
)

// VersionProfile is a named min/max TLS version range for the listener.
type VersionProfile struct {
	Min         uint16
	Max         uint16
	Description string
}

var (
	// ProfileModern is the default listener profile: TLS 1.3 only.
	ProfileModern = VersionProfile{
		Min:         VersionTLS13,
		Max:         VersionTLS13,
		Description: "TLS 1.3 only",
	}

	// ProfileSecure admits TLS 1.2 peers alongside 1.3.
	ProfileSecure = VersionProfile{
		Min:         VersionTLS12,
		Max:         VersionTLS13,
		Description: "TLS 1.2 and 1.3",
	}

	// ProfileCompatible admits deprecated TLS 1.0/1.1 peers; use only when
	// a legacy client population leaves no choice.
	ProfileCompatible = VersionProfile{
		Min:         VersionTLS10,
		Max:         VersionTLS13,
		Description: "TLS 1.0 through 1.3, includes deprecated versions",
	}
)

// GetVersionName returns the human-readable name of a TLS version, for
// log lines and errors.
func GetVersionName(version uint16) string {
	switch version {
	case VersionTLS10:
		return "TLS 1.0"
	case VersionTLS11:
		return "TLS 1.1"
	case VersionTLS12:
		return "TLS 1.2"
	case VersionTLS13:
		return "TLS 1.3"
	default:
		return "Unknown"
	}
}

// IsVersionDeprecated reports whether version is below TLS 1.2.
func IsVersionDeprecated(version uint16) bool {
	return version < VersionTLS12
}

// Cipher suites offered per profile, strongest first.
var (
	// CipherSuitesTLS13 is informational only: crypto/tls does not allow
	// configuring TLS 1.3 suites, it always uses these three.
	CipherSuitesTLS13 = []uint16{
		tls.TLS_AES_128_GCM_SHA256,
		tls.TLS_AES_256_GCM_SHA384,
		tls.TLS_CHACHA20_POLY1305_SHA256,
	}

	// CipherSuitesTLS12Secure restricts TLS 1.2 to ECDHE with AEAD.
	CipherSuitesTLS12Secure = []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	}

	// CipherSuitesTLS12Compatible adds CBC-mode suites for old peers.
	CipherSuitesTLS12Compatible = []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
		tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
	}
)

// ApplyVersionProfile sets the config's min/max versions from profile.
func ApplyVersionProfile(config *tls.Config, profile VersionProfile) {
	config.MinVersion = profile.Min
	config.MaxVersion = profile.Max
}

// ApplyCipherSuites picks the suite list matching the minimum version. A
// TLS 1.3-only config leaves CipherSuites nil since crypto/tls ignores it
// for 1.3 anyway.
func ApplyCipherSuites(config *tls.Config, minVersion uint16) {
	switch {
	case minVersion >= VersionTLS13:
		config.CipherSuites = nil
	case minVersion >= VersionTLS12:
		config.CipherSuites = CipherSuitesTLS12Secure
	default:
		config.CipherSuites = CipherSuitesTLS12Compatible
	}
}
