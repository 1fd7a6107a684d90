package tipjar

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Account is the decoded state of the tip jar.
// TotalTips is denominated in lamports.
type Account struct {
	Owner     solana.PublicKey `json:"owner"`
	TotalTips uint64           `json:"total_tips"`
	TipCount  uint64           `json:"tip_count"`
}

// DecodeAccount decodes raw account data written by the tipjar program.
// Any failure wraps ErrAccountNotFound so readers can treat it as "no data yet".
func DecodeAccount(data []byte) (*Account, error) {
	if len(data) < AccountSize {
		return nil, fmt.Errorf("%w: account data is %d bytes, want %d", ErrAccountNotFound, len(data), AccountSize)
	}
	if !bytes.Equal(data[:8], accountDiscriminator[:]) {
		return nil, fmt.Errorf("%w: unexpected account discriminator %x", ErrAccountNotFound, data[:8])
	}

	dec := bin.NewBorshDecoder(data[8:])
	owner, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %v", ErrAccountNotFound, err)
	}
	totalTips, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("%w: total_tips: %v", ErrAccountNotFound, err)
	}
	tipCount, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("%w: tip_count: %v", ErrAccountNotFound, err)
	}

	return &Account{
		Owner:     solana.PublicKeyFromBytes(owner),
		TotalTips: totalTips,
		TipCount:  tipCount,
	}, nil
}

// Encode serializes the account the way the program stores it.
func (a *Account) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(accountDiscriminator[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(a.Owner[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(a.TotalTips, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(a.TipCount, binary.LittleEndian); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AvailableBalance is what the owner can withdraw: balance above the rent floor.
func AvailableBalance(balance, rentFloor uint64) uint64 {
	if balance <= rentFloor {
		return 0
	}
	return balance - rentFloor
}
