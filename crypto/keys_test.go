package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	addr := key.PubKey().Address()
	encoded := addr.String()
	require.Equal(t, BountyPrefix, addr.Prefix())

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, addr.Bytes(), decoded.Bytes())
	require.Equal(t, BountyPrefix, decoded.Prefix())
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	_, err := DecodeAddress("not-bech32")
	require.Error(t, err)

	_, err = DecodeAddress("")
	require.Error(t, err)
}

func TestPrivateKeyBytesRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	restored, err := PrivateKeyFromBytes(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address().String(), restored.PubKey().Address().String())
}
