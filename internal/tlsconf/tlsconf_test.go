package tlsconf

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/bounceboard/internal/keys"
)

const (
	testKey  = "abcdefghijklmnopqrstuvwxyz"
	otherKey = "zyxwvutsrqponmlkjihgfedcba"
)

// handshake runs one TLS handshake between server and client configs.
func handshake(t *testing.T, server, client *tls.Config) error {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", server)
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		_ = c.(*tls.Conn).Handshake()
		_ = c.Close()
	}()

	c, err := tls.Dial("tcp", ln.Addr().String(), client)
	if err != nil {
		return err
	}
	return c.Close()
}

func TestDerivedKeyIsDeterministic(t *testing.T) {
	a, err := deriveKey(testKey)
	require.NoError(t, err)
	b, err := deriveKey(testKey)
	require.NoError(t, err)
	c, err := deriveKey(otherKey)
	require.NoError(t, err)

	assert.True(t, a.PublicKey.Equal(&b.PublicKey))
	assert.False(t, a.PublicKey.Equal(&c.PublicKey))
}

func TestPinnedClientMatchingKey(t *testing.T) {
	srv, err := Derived(testKey)
	require.NoError(t, err)
	cli, err := PinnedClient(testKey)
	require.NoError(t, err)

	assert.NoError(t, handshake(t, srv, cli))
}

func TestPinnedClientWrongKey(t *testing.T) {
	srv, err := Derived(testKey)
	require.NoError(t, err)
	cli, err := PinnedClient(otherKey)
	require.NoError(t, err)

	err = handshake(t, srv, cli)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestInsecureClientAcceptsAnything(t *testing.T) {
	srv, err := Derived(testKey)
	require.NoError(t, err)
	assert.NoError(t, handshake(t, srv, InsecureClient()))
}

func TestLoadServer(t *testing.T) {
	const filesKey = "filesfilesfilesfilesfilesf"
	key, err := deriveKey(filesKey)
	require.NoError(t, err)
	certPEM, err := selfSignedCert(key)
	require.NoError(t, err)
	keyPEM, err := marshalKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))

	srv, err := LoadServer(certFile, keyFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"http/1.1"}, srv.NextProtos)

	// A files-based server is pinnable too when its key came from the same source.
	cli, err := PinnedClient(filesKey)
	require.NoError(t, err)
	assert.NoError(t, handshake(t, srv, cli))

	_, err = LoadServer(filepath.Join(dir, "missing.pem"), keyFile)
	assert.Error(t, err)
}

func TestShortKeysAreRefused(t *testing.T) {
	for _, key := range []string{"", "abcd2345", testKey[:MinKeyLength-1]} {
		_, err := Derived(key)
		assert.ErrorIs(t, err, ErrWeakKey, key)
		_, err = PinnedClient(key)
		assert.ErrorIs(t, err, ErrWeakKey, key)
	}
}

func TestGeneratedKeyCanDerive(t *testing.T) {
	k, err := keys.Generate()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(k), MinKeyLength)

	srv, err := Derived(k)
	require.NoError(t, err)
	cli, err := PinnedClient(k)
	require.NoError(t, err)
	assert.NoError(t, handshake(t, srv, cli))
}
