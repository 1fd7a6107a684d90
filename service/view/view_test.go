package view

import (
	"testing"

	"github.com/brojonat/tipjar/service/solana"
	"github.com/brojonat/tipjar/service/tipjar"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
)

func TestDerive(t *testing.T) {
	address := solanago.NewWallet().PublicKey()
	owner := solanago.NewWallet().PublicKey()
	viewer := solanago.NewWallet().PublicKey()

	snap := Snapshot{Snapshot: solana.Snapshot{
		Address:   address,
		Account:   &tipjar.Account{Owner: owner, TotalTips: 1_500_000_000, TipCount: 4},
		Balance:   1_501_280_640,
		RentFloor: 1_280_640,
	}}
	pay := PayLink{SuggestedTip: 250_000_000, Label: "Coffee"}

	t.Run("disconnected", func(t *testing.T) {
		v := derive(snap, nil, false, address, "devnet", pay)
		assert.Equal(t, Disconnected, v.State)
		assert.Equal(t, "1.5000", v.TotalTipsSOL)
		assert.Equal(t, uint64(1_500_000_000), v.Available)
		assert.Equal(t, "solana:"+address.String()+"?amount=0.25&label=Coffee", v.PayURI)
	})

	t.Run("owner", func(t *testing.T) {
		v := derive(snap, &owner, false, address, "devnet", pay)
		assert.Equal(t, ConnectedOwner, v.State)
		assert.True(t, v.IsOwner)
	})

	t.Run("viewer", func(t *testing.T) {
		v := derive(snap, &viewer, false, address, "devnet", pay)
		assert.Equal(t, ConnectedViewer, v.State)
		assert.False(t, v.IsOwner)
	})

	t.Run("submitting overrides", func(t *testing.T) {
		v := derive(snap, &owner, true, address, "devnet", pay)
		assert.Equal(t, Submitting, v.State)
		assert.True(t, v.IsOwner)
	})

	t.Run("balance under rent floor", func(t *testing.T) {
		low := snap
		low.Balance = 1000
		v := derive(low, &owner, false, address, "devnet", pay)
		assert.Zero(t, v.Available)
		assert.Equal(t, "0.0000", v.AvailableSOL)
	})
}
