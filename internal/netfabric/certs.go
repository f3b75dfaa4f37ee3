package netfabric

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// GenerateSelfSignedConfig creates a self-signed TLS certificate, used for
// a protocol's own listener (the xfer engine's direct-connect transport,
// or local development against "old_ssl" style servers) rather than for
// validating a remote peer. Adapted from the teacher's HTTPS-listener
// helper of the same shape; hostname becomes the certificate's Common
// Name and sole extra DNS SAN alongside "localhost".
func GenerateSelfSignedConfig(validity time.Duration, hostname string) (*tls.Config, string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("netfabric: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, "", fmt.Errorf("netfabric: generate serial: %w", err)
	}

	cn := "imcore"
	if hostname != "" {
		cn = hostname
	}

	sans := []string{"localhost"}
	if hostname != "" && hostname != "localhost" {
		sans = append(sans, hostname)
	}

	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validity),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              sans,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, "", fmt.Errorf("netfabric: create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, "", fmt.Errorf("netfabric: parse certificate: %w", err)
	}

	fp := sha256.Sum256(certDER)
	fingerprint := hex.EncodeToString(fp[:])

	tlsCert := tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
		Leaf:        cert,
	}

	return &tls.Config{Certificates: []tls.Certificate{tlsCert}}, fingerprint, nil
}

// CertErrorKind is the closed sub-taxonomy of spec.md §7's
// certificate-{not-provided,untrusted,expired,self-signed,other} branch.
type CertErrorKind int

const (
	CertNotProvided CertErrorKind = iota
	CertUntrusted
	CertExpired
	CertSelfSigned
	CertOther
)

// ClassifyCertError maps a handshake error into the closed taxonomy, so
// callers can report a stable ConnectionError kind instead of the raw
// crypto/x509 error text.
func ClassifyCertError(err error) CertErrorKind {
	if err == nil {
		return CertOther
	}
	var unknownAuthority x509.UnknownAuthorityError
	var invalid x509.CertificateInvalidError
	switch {
	case errors.As(err, &unknownAuthority):
		return CertUntrusted
	case errors.As(err, &invalid):
		if invalid.Reason == x509.Expired {
			return CertExpired
		}
		return CertOther
	default:
		return CertOther
	}
}
