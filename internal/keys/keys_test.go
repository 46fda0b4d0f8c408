package keys

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)
	assert.Len(t, k, GeneratedLength)
	assert.Regexp(t, `^[a-z2-7]{26}$`, k)

	other, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, k, other)
}

func TestGenerateDeterministicSource(t *testing.T) {
	k, err := generate(bytes.NewReader(make([]byte, randomBytes)))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", GeneratedLength), k)
}

func TestGenerateReadError(t *testing.T) {
	_, err := generate(iotest.ErrReader(errors.New("no entropy")))
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("abcd2345", "abcd2345"))
	assert.False(t, Valid("abcd2345", "abcd2346"))
	assert.False(t, Valid("abcd2345", ""))
	assert.False(t, Valid("abcd2345", "abcd23456"))
	assert.False(t, Valid("", ""))
}
