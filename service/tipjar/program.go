package tipjar

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Seed is the fixed PDA seed of the tip jar state account.
const Seed = "tipjar"

// AccountSize is the on-chain size of the tip jar account:
// discriminator + owner pubkey + total_tips u64 + tip_count u64.
const AccountSize = 8 + 32 + 8 + 8

// DefaultProgramID is the deployed tipjar program.
var DefaultProgramID = solana.MustPublicKeyFromBase58("9SsavCqnPP6NLu6sbA8YsDDN23hQrXUKuPXZgp1C1ojQ")

// Anchor discriminators: the first 8 bytes of sha256("<namespace>:<name>").
var (
	accountDiscriminator    = discriminator("account", "Tipjar")
	initializeDiscriminator = discriminator("global", "initialize")
	sendTipDiscriminator    = discriminator("global", "send_tip")
	withdrawDiscriminator   = discriminator("global", "withdraw")
)

func discriminator(namespace, name string) [8]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// Program identifies a deployed tipjar program.
// The tip jar address is derived on demand and never cached.
type Program struct {
	ID solana.PublicKey
}

// NewProgram validates that a tip jar address can be derived for programID.
func NewProgram(programID solana.PublicKey) (Program, error) {
	if programID.IsZero() {
		return Program{}, fmt.Errorf("program id is required")
	}
	if _, _, err := DeriveAddress(programID); err != nil {
		return Program{}, err
	}
	return Program{ID: programID}, nil
}

// ParseProgramID parses a base58 program id. An empty string selects
// DefaultProgramID.
func ParseProgramID(s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultProgramID, nil
	}
	id, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program id %q: %w", s, err)
	}
	return id, nil
}

// DeriveAddress returns the tip jar PDA and its bump for programID.
func DeriveAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{[]byte(Seed)}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive tip jar address: %w", err)
	}
	return addr, bump, nil
}

// Address returns the tip jar PDA. Programs built with NewProgram always
// derive successfully.
func (p Program) Address() solana.PublicKey {
	addr, _, err := DeriveAddress(p.ID)
	if err != nil {
		panic(fmt.Sprintf("failed to derive tip jar PDA: %v", err))
	}
	return addr
}
