package encrypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESRoundTrip(t *testing.T) {
	enc, err := AESEncrypt("any passphrase", "sk-ant-123456")
	require.NoError(t, err)
	assert.NotContains(t, enc, "sk-ant")

	dec, err := AESDecrypt("any passphrase", enc)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-123456", dec)

	_, err = AESDecrypt("wrong", enc)
	assert.Error(t, err)
}

func TestAESEmpty(t *testing.T) {
	enc, err := AESEncrypt("k", "")
	require.NoError(t, err)
	assert.Empty(t, enc)

	dec, err := AESDecrypt("k", "")
	require.NoError(t, err)
	assert.Empty(t, dec)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "sk-****cdef", MaskSecret("sk-abcdef", "sk-****"))
	assert.Equal(t, "****", MaskSecret("abc", "****"))
	assert.Equal(t, "", MaskSecret("", "****"))
	assert.True(t, IsMasked("sk-****cdef"))
	assert.False(t, IsMasked("sk-abcdef"))
}
