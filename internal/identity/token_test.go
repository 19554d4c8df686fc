package identity

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateSetupToken_FormatAndHash(t *testing.T) {
	token, hash, err := GenerateSetupToken()
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(token, SetupTokenPrefix))
	require.True(t, ValidateSetupTokenFormat(token))
	require.Len(t, hash, sha256.Size)
	require.Equal(t, HashSetupToken(token), hash)
}

func TestGenerateSetupToken_Unique(t *testing.T) {
	a, _, err := GenerateSetupToken()
	require.NoError(t, err)
	b, _, err := GenerateSetupToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestValidateSetupTokenFormat_Invalid(t *testing.T) {
	require.False(t, ValidateSetupTokenFormat(""))
	require.False(t, ValidateSetupTokenFormat("li_"))
	require.False(t, ValidateSetupTokenFormat("nope_abc"))
	require.False(t, ValidateSetupTokenFormat("li_not-base64!!"))
	require.False(t, ValidateSetupTokenFormat("li_c2hvcnQ"))
}
