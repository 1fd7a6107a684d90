// Package wallet holds the signing identity that submits tip jar
// transactions. The page server and CLI connect a local keypair; anything
// that can sign a transaction satisfies Signer.
package wallet

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// ErrNotConnected is returned by signing operations while no key is connected.
var ErrNotConnected = errors.New("wallet not connected")

// Signer is the capability Client.Submit needs: an identity to pay fees
// and a way to sign.
type Signer interface {
	PublicKey() (solana.PublicKey, error)
	SignTransaction(tx *solana.Transaction) error
}

// Wallet is a Signer whose connection can be toggled by the user.
type Wallet interface {
	Signer
	Connect() (solana.PublicKey, error)
	Disconnect()
	Connected() bool
}

// KeypairWallet signs with an in-memory private key. Connect and
// Disconnect only toggle whether the key is exposed.
type KeypairWallet struct {
	mu        sync.RWMutex
	key       solana.PrivateKey
	connected bool
}

// NewKeypairWallet returns a disconnected wallet for key.
func NewKeypairWallet(key solana.PrivateKey) *KeypairWallet {
	return &KeypairWallet{key: key}
}

// LoadKeypairWallet reads a solana-keygen JSON keypair file.
func LoadKeypairWallet(path string) (*KeypairWallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}
	return NewKeypairWallet(key), nil
}

func (w *KeypairWallet) Connect() (solana.PublicKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.key) == 0 {
		return solana.PublicKey{}, errors.New("wallet has no key")
	}
	w.connected = true
	return w.key.PublicKey(), nil
}

func (w *KeypairWallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
}

func (w *KeypairWallet) Connected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *KeypairWallet) PublicKey() (solana.PublicKey, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.connected {
		return solana.PublicKey{}, ErrNotConnected
	}
	return w.key.PublicKey(), nil
}

// SignTransaction adds this wallet's signature to tx. It fails if the
// transaction does not list the wallet as a required signer.
func (w *KeypairWallet) SignTransaction(tx *solana.Transaction) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.connected {
		return ErrNotConnected
	}
	pub := w.key.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// Static returns an always-connected Signer for key, used by the CLI.
func Static(key solana.PrivateKey) Signer {
	w := NewKeypairWallet(key)
	w.connected = true
	return w
}
