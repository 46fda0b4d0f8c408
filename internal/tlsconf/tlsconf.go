// Package tlsconf builds the TLS configurations for the relay listener and
// the peer dialer.
//
// Three server modes are supported:
//
//   - certificate and key files supplied by the operator (LoadServer);
//   - a self-signed certificate whose private key is derived from the access
//     key (Derived), so peers can pin it without any PKI;
//   - plain HTTP, where no config is built at all.
//
// Derived key material:
//
//	ikm = Argon2id(access key, salt="bounceboard-tls-v2", t=2, m=19 MiB, p=1)
//	HKDF-SHA256(ikm, salt="bounceboard-tls-v2", info="private-key")
//	→ 64 bytes → reduced mod curve order → deterministic ECDSA P-256 key
//
// Anyone who completes a handshake learns the public key and can test
// candidate access keys against it offline, so derivation refuses keys
// shorter than MinKeyLength.
//
// The certificate itself is regenerated on every start; PinnedClient verifies
// the server's public key rather than the certificate.
package tlsconf

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	serverName = "bounceboard"
	salt       = "bounceboard-tls-v2"

	// MinKeyLength is the shortest access key a certificate is derived from:
	// 26 base32 characters carry 128 bits.
	MinKeyLength = 26
)

// ErrWeakKey is returned when the access key is too short to derive a
// certificate from.
var ErrWeakKey = errors.New("access key too short to derive a certificate from")

// WebSocket upgrades need HTTP/1.1; never let ALPN pick h2.
var nextProtos = []string{"http/1.1"}

// LoadServer returns a server config using the PEM certificate and key files.
func LoadServer(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: load key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   nextProtos,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Derived returns a server config with a self-signed certificate over the
// key derived from accessKey.
func Derived(accessKey string) (*tls.Config, error) {
	key, err := deriveKey(accessKey)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: derive key: %w", err)
	}

	certPEM, err := selfSignedCert(key)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: cert: %w", err)
	}
	keyPEM, err := marshalKey(key)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: marshal key: %w", err)
	}
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: key pair: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   nextProtos,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// PinnedClient returns a client config that accepts only a server whose
// public key was derived from accessKey. A server started with another key
// fails the handshake.
func PinnedClient(accessKey string) (*tls.Config, error) {
	key, err := deriveKey(accessKey)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: derive key: %w", err)
	}
	expectedPub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: marshal pubkey: %w", err)
	}

	return &tls.Config{
		// Chain verification is replaced by the public key check below.
		InsecureSkipVerify: true, //nolint:gosec
		ServerName:         serverName,
		NextProtos:         nextProtos,
		MinVersion:         tls.VersionTLS13,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return fmt.Errorf("tlsconf: server presented no certificate")
			}
			cert, err := x509.ParseCertificate(rawCerts[0])
			if err != nil {
				return fmt.Errorf("tlsconf: parse server cert: %w", err)
			}
			pub, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
			if err != nil {
				return fmt.Errorf("tlsconf: marshal server pubkey: %w", err)
			}
			if !bytes.Equal(pub, expectedPub) {
				return fmt.Errorf("tlsconf: server public key does not match access key")
			}
			return nil
		},
	}, nil
}

// InsecureClient returns a client config that skips certificate
// verification entirely, for relays with throwaway self-signed certificates.
func InsecureClient() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec
		NextProtos:         nextProtos,
	}
}

// deriveKey derives a deterministic ECDSA P-256 private key from accessKey.
func deriveKey(accessKey string) (*ecdsa.PrivateKey, error) {
	if len(accessKey) < MinKeyLength {
		return nil, fmt.Errorf("%w (%d characters, need %d)", ErrWeakKey, len(accessKey), MinKeyLength)
	}
	ikm := argon2.IDKey([]byte(accessKey), []byte(salt), 2, 19*1024, 1, 32)
	r := hkdf.New(sha256.New, ikm, []byte(salt), []byte("private-key"))
	buf := make([]byte, 64)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("hkdf read: %w", err)
	}

	curve := elliptic.P256()
	n := curve.Params().N
	k := new(big.Int).SetBytes(buf)
	k.Mod(k, new(big.Int).Sub(n, big.NewInt(1)))
	k.Add(k, big.NewInt(1)) // k ∈ [1, N-1]

	key := new(ecdsa.PrivateKey)
	key.PublicKey.Curve = curve
	key.D = k
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(k.Bytes())
	return key, nil
}

func selfSignedCert(key *ecdsa.PrivateKey) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: serverName},
		DNSNames:              []string{serverName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(100 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}), nil
}

func marshalKey(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}
