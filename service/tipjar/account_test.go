package tipjar

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAccount(t *testing.T) {
	owner := solana.NewWallet().PublicKey()

	t.Run("round trip", func(t *testing.T) {
		in := &Account{Owner: owner, TotalTips: 800_000_000, TipCount: 3}
		data, err := in.Encode()
		require.NoError(t, err)
		require.Len(t, data, AccountSize)

		out, err := DecodeAccount(data)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("short data is not found", func(t *testing.T) {
		_, err := DecodeAccount([]byte{1, 2, 3})
		require.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("wrong discriminator is not found", func(t *testing.T) {
		data, err := (&Account{Owner: owner}).Encode()
		require.NoError(t, err)
		data[0] ^= 0xff

		_, err = DecodeAccount(data)
		require.ErrorIs(t, err, ErrAccountNotFound)
		assert.Contains(t, err.Error(), "discriminator")
	})

	t.Run("little endian fields", func(t *testing.T) {
		data, err := (&Account{Owner: owner, TotalTips: 1, TipCount: 2}).Encode()
		require.NoError(t, err)
		assert.Equal(t, byte(1), data[40])
		assert.Equal(t, byte(2), data[48])
	})
}

func TestAvailableBalance(t *testing.T) {
	tests := []struct {
		name      string
		balance   uint64
		rentFloor uint64
		want      uint64
	}{
		{name: "above floor", balance: 1_000_000_000, rentFloor: 1_280_640, want: 998_719_360},
		{name: "at floor", balance: 1_280_640, rentFloor: 1_280_640, want: 0},
		{name: "below floor", balance: 10, rentFloor: 1_280_640, want: 0},
		{name: "empty", balance: 0, rentFloor: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AvailableBalance(tt.balance, tt.rentFloor))
		})
	}
}
