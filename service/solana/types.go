package solana

import (
	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Receipt describes a confirmed tip jar transaction.
type Receipt struct {
	Signature   solana.Signature           `json:"signature"`
	Instruction tipjar.InstructionKind     `json:"instruction"`
	Payer       solana.PublicKey           `json:"payer"`
	Amount      uint64                     `json:"amount"`
	Slot        uint64                     `json:"slot"`
	Status      rpc.ConfirmationStatusType `json:"status"`
}

// Snapshot is one read of the tip jar: account data (nil until the account
// exists), its lamport balance and the rent-exempt floor.
type Snapshot struct {
	Address   solana.PublicKey `json:"address"`
	Account   *tipjar.Account  `json:"account"`
	Balance   uint64           `json:"balance"`
	RentFloor uint64           `json:"rent_floor"`
}

// Available is the withdrawable balance above the rent floor.
func (s Snapshot) Available() uint64 {
	return tipjar.AvailableBalance(s.Balance, s.RentFloor)
}
