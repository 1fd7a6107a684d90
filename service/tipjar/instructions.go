package tipjar

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// InstructionKind names a tipjar program instruction.
type InstructionKind string

const (
	InstructionInitialize InstructionKind = "initialize"
	InstructionSendTip    InstructionKind = "send_tip"
	InstructionWithdraw   InstructionKind = "withdraw"
)

// NewInitializeInstruction creates the tip jar account owned by owner.
func NewInitializeInstruction(p Program, owner solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		p.ID,
		solana.AccountMetaSlice{
			solana.Meta(p.Address()).WRITE(),
			solana.Meta(owner).WRITE().SIGNER(),
			solana.Meta(solana.SystemProgramID),
		},
		initializeDiscriminator[:],
	)
}

// NewSendTipInstruction transfers amount lamports from tipper into the tip jar.
func NewSendTipInstruction(p Program, tipper solana.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(
		p.ID,
		solana.AccountMetaSlice{
			solana.Meta(p.Address()).WRITE(),
			solana.Meta(tipper).WRITE().SIGNER(),
			solana.Meta(solana.SystemProgramID),
		},
		encodeAmount(sendTipDiscriminator, amount),
	)
}

// NewWithdrawInstruction moves amount lamports from the tip jar to owner.
func NewWithdrawInstruction(p Program, owner solana.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(
		p.ID,
		solana.AccountMetaSlice{
			solana.Meta(p.Address()).WRITE(),
			solana.Meta(owner).WRITE().SIGNER(),
		},
		encodeAmount(withdrawDiscriminator, amount),
	)
}

func encodeAmount(disc [8]byte, amount uint64) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	// Writes into a bytes.Buffer cannot fail.
	_ = enc.WriteBytes(disc[:], false)
	_ = enc.WriteUint64(amount, binary.LittleEndian)
	return buf.Bytes()
}

// DecodeInstructionData identifies a tipjar instruction and its amount argument.
// Initialize carries no amount.
func DecodeInstructionData(data []byte) (InstructionKind, uint64, error) {
	if len(data) < 8 {
		return "", 0, fmt.Errorf("instruction data too short: %d bytes", len(data))
	}
	var disc [8]byte
	copy(disc[:], data[:8])

	var kind InstructionKind
	switch disc {
	case initializeDiscriminator:
		return InstructionInitialize, 0, nil
	case sendTipDiscriminator:
		kind = InstructionSendTip
	case withdrawDiscriminator:
		kind = InstructionWithdraw
	default:
		return "", 0, fmt.Errorf("unknown instruction discriminator %x", disc)
	}

	amount, err := bin.NewBorshDecoder(data[8:]).ReadUint64(binary.LittleEndian)
	if err != nil {
		return "", 0, fmt.Errorf("%s: invalid amount: %w", kind, err)
	}
	return kind, amount, nil
}
