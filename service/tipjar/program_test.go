package tipjar

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAddress(t *testing.T) {
	t.Run("deterministic for the same program", func(t *testing.T) {
		first, bump1, err := DeriveAddress(DefaultProgramID)
		require.NoError(t, err)
		second, bump2, err := DeriveAddress(DefaultProgramID)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, bump1, bump2)
	})

	t.Run("matches create program address with bump", func(t *testing.T) {
		addr, bump, err := DeriveAddress(DefaultProgramID)
		require.NoError(t, err)

		expected, err := solana.CreateProgramAddress([][]byte{[]byte("tipjar"), {bump}}, DefaultProgramID)
		require.NoError(t, err)
		assert.Equal(t, expected, addr)
	})

	t.Run("different programs derive different addresses", func(t *testing.T) {
		other := solana.NewWallet().PublicKey()
		a, _, err := DeriveAddress(DefaultProgramID)
		require.NoError(t, err)
		b, _, err := DeriveAddress(other)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestParseProgramID(t *testing.T) {
	t.Run("empty selects default", func(t *testing.T) {
		id, err := ParseProgramID("")
		require.NoError(t, err)
		assert.Equal(t, DefaultProgramID, id)
	})

	t.Run("valid id", func(t *testing.T) {
		id, err := ParseProgramID(" 11111111111111111111111111111111 ")
		require.NoError(t, err)
		assert.Equal(t, solana.SystemProgramID, id)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := ParseProgramID("not-a-key!")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid program id")
	})
}

func TestNewProgram(t *testing.T) {
	t.Run("zero id rejected", func(t *testing.T) {
		_, err := NewProgram(solana.PublicKey{})
		require.Error(t, err)
	})

	t.Run("address matches derivation", func(t *testing.T) {
		p, err := NewProgram(DefaultProgramID)
		require.NoError(t, err)

		addr, _, err := DeriveAddress(DefaultProgramID)
		require.NoError(t, err)
		assert.Equal(t, addr, p.Address())
	})
}

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, [8]byte{3, 193, 18, 185, 41, 25, 13, 109}, accountDiscriminator)
	assert.Equal(t, [8]byte{175, 175, 109, 31, 13, 152, 155, 237}, initializeDiscriminator)
	assert.Equal(t, [8]byte{231, 88, 56, 242, 241, 6, 31, 59}, sendTipDiscriminator)
	assert.Equal(t, [8]byte{183, 18, 70, 156, 148, 109, 161, 34}, withdrawDiscriminator)
}
