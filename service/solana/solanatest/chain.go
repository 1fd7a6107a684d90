// Package solanatest provides an in-memory Solana chain that runs the tip
// jar program's instructions, for use in tests of code built on
// solana.RPCClient.
package solanatest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// DefaultRentFloor is what a 56-byte account needs on a default validator.
const DefaultRentFloor uint64 = 1_280_640

// System Program custom error for a transfer from an underfunded account.
const codeSystemInsufficientLamports uint32 = 1

type account struct {
	lamports uint64
	data     []byte
}

// Chain implements solana.RPCClient against in-memory state. Instructions
// for Program execute with the tip jar program's rules.
type Chain struct {
	Program tipjar.Program

	mu        sync.Mutex
	accounts  map[solana.PublicKey]*account
	statuses  map[solana.Signature]*rpc.SignatureStatusesResult
	pending   map[solana.Signature]int
	rentFloor uint64
	slot      uint64

	// SkipPreflight makes program failures surface at confirmation instead
	// of as a SendTransaction error.
	SkipPreflight bool
	// PendingPolls is how many status polls return nothing before a sent
	// transaction is reported.
	PendingPolls int
	// Err, when set, fails every RPC call.
	Err error

	sent  int
	reads int
	log   string
}

// NewChain returns an empty chain for program.
func NewChain(program tipjar.Program) *Chain {
	return &Chain{
		Program:   program,
		accounts:  make(map[solana.PublicKey]*account),
		statuses:  make(map[solana.Signature]*rpc.SignatureStatusesResult),
		pending:   make(map[solana.Signature]int),
		rentFloor: DefaultRentFloor,
		slot:      1,
	}
}

// Airdrop credits lamports to address.
func (c *Chain) Airdrop(address solana.PublicKey, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.get(address).lamports += lamports
}

// Balance returns the lamports held by address.
func (c *Chain) Balance(address solana.PublicKey) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.accounts[address]; ok {
		return a.lamports
	}
	return 0
}

// SetAccountData overwrites the raw data stored at address.
func (c *Chain) SetAccountData(address solana.PublicKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.get(address).data = data
}

// SetRentFloor changes the rent-exempt minimum reported for tip jar accounts.
func (c *Chain) SetRentFloor(lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rentFloor = lamports
}

// Sent counts SendTransaction calls, including rejected ones.
func (c *Chain) Sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// Reads counts account, balance and rent queries.
func (c *Chain) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *Chain) get(address solana.PublicKey) *account {
	a, ok := c.accounts[address]
	if !ok {
		a = &account{}
		c.accounts[address] = a
	}
	return a
}

func (c *Chain) GetAccountInfo(ctx context.Context, address solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetAccountInfoResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.Err != nil {
		return nil, c.Err
	}
	a, ok := c.accounts[address]
	if !ok || a.data == nil {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{
		Value: &rpc.Account{
			Lamports: a.lamports,
			Owner:    c.Program.ID,
			Data:     rpc.DataBytesOrJSONFromBytes(append([]byte(nil), a.data...)),
		},
	}, nil
}

func (c *Chain) GetBalance(ctx context.Context, address solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.Err != nil {
		return nil, c.Err
	}
	var lamports uint64
	if a, ok := c.accounts[address]; ok {
		lamports = a.lamports
	}
	return &rpc.GetBalanceResult{Value: lamports}, nil
}

func (c *Chain) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.Err != nil {
		return 0, c.Err
	}
	if dataSize != tipjar.AccountSize {
		return 0, fmt.Errorf("unexpected data size %d", dataSize)
	}
	return c.rentFloor, nil
}

func (c *Chain) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            solana.Hash{byte(c.slot), 0xb1},
			LastValidBlockHeight: c.slot + 150,
		},
	}, nil
}

func (c *Chain) SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent++
	if c.Err != nil {
		return solana.Signature{}, c.Err
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction has no signatures")
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, fmt.Errorf("signature verification failed: %w", err)
	}
	sig := tx.Signatures[0]

	code, err := c.execute(tx)
	if err != nil {
		return solana.Signature{}, err
	}
	if code != 0 && !c.SkipPreflight {
		msg := fmt.Sprintf("Transaction simulation failed: Error processing Instruction 0: custom program error: 0x%x", code)
		if c.log != "" {
			msg += ". Logs: [" + c.log + "]"
		}
		return solana.Signature{}, errors.New(msg)
	}

	c.slot++
	status := &rpc.SignatureStatusesResult{
		Slot:               c.slot,
		ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
	}
	if code != 0 {
		status.Err = map[string]interface{}{
			"InstructionError": []interface{}{
				float64(0),
				map[string]interface{}{"Custom": float64(code)},
			},
		}
	}
	c.statuses[sig] = status
	c.pending[sig] = c.PendingPolls
	return sig, nil
}

func (c *Chain) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	out := &rpc.GetSignatureStatusesResult{}
	for _, sig := range signatures {
		if c.pending[sig] > 0 {
			c.pending[sig]--
			out.Value = append(out.Value, nil)
			continue
		}
		out.Value = append(out.Value, c.statuses[sig])
	}
	return out, nil
}

// execute applies every instruction or none. A non-zero code is a
// custom program error.
func (c *Chain) execute(tx *solana.Transaction) (uint32, error) {
	c.log = ""
	keys := tx.Message.AccountKeys
	signers := keys[:tx.Message.Header.NumRequiredSignatures]
	isSigner := func(pk solana.PublicKey) bool {
		for _, s := range signers {
			if s.Equals(pk) {
				return true
			}
		}
		return false
	}

	staged := make(map[solana.PublicKey]*account)
	stage := func(pk solana.PublicKey) *account {
		if a, ok := staged[pk]; ok {
			return a
		}
		a := &account{}
		if cur, ok := c.accounts[pk]; ok {
			a.lamports = cur.lamports
			a.data = append([]byte(nil), cur.data...)
		}
		staged[pk] = a
		return a
	}

	for _, ix := range tx.Message.Instructions {
		programID := keys[ix.ProgramIDIndex]
		if !programID.Equals(c.Program.ID) {
			return 0, fmt.Errorf("unsupported program %s", programID)
		}
		accts := make([]solana.PublicKey, len(ix.Accounts))
		for i, idx := range ix.Accounts {
			accts[i] = keys[idx]
		}
		if len(accts) < 2 || !accts[0].Equals(c.Program.Address()) {
			return 0, errors.New("instruction does not reference the tip jar")
		}
		if !isSigner(accts[1]) {
			return 0, errors.New("missing required signature")
		}

		kind, amount, err := tipjar.DecodeInstructionData(ix.Data)
		if err != nil {
			return 0, err
		}
		jar, user := stage(accts[0]), stage(accts[1])

		switch kind {
		case tipjar.InstructionInitialize:
			if jar.data != nil {
				return 0, errors.New("Allocate: account already in use")
			}
			if user.lamports < c.rentFloor {
				return 0, errors.New("Attempt to debit an account but found no record of a prior credit.")
			}
			data, err := (&tipjar.Account{Owner: accts[1]}).Encode()
			if err != nil {
				return 0, err
			}
			user.lamports -= c.rentFloor
			jar.lamports += c.rentFloor
			jar.data = data

		case tipjar.InstructionSendTip:
			if jar.data == nil {
				return tipjar.CodeAccountNotInitialized, nil
			}
			if amount == 0 {
				return tipjar.CodeInvalidAmount, nil
			}
			if user.lamports < amount {
				c.log = fmt.Sprintf("Transfer: insufficient lamports %d, need %d", user.lamports, amount)
				return codeSystemInsufficientLamports, nil
			}
			state, err := tipjar.DecodeAccount(jar.data)
			if err != nil {
				return 0, err
			}
			user.lamports -= amount
			jar.lamports += amount
			state.TotalTips += amount
			state.TipCount++
			if jar.data, err = state.Encode(); err != nil {
				return 0, err
			}

		case tipjar.InstructionWithdraw:
			if jar.data == nil {
				return tipjar.CodeAccountNotInitialized, nil
			}
			state, err := tipjar.DecodeAccount(jar.data)
			if err != nil {
				return 0, err
			}
			if !state.Owner.Equals(accts[1]) {
				return tipjar.CodeConstraintHasOne, nil
			}
			if amount == 0 {
				return tipjar.CodeInvalidAmount, nil
			}
			if jar.lamports < c.rentFloor || jar.lamports-c.rentFloor < amount {
				return tipjar.CodeInsufficientFunds, nil
			}
			jar.lamports -= amount
			user.lamports += amount
		}
	}

	for pk, a := range staged {
		c.accounts[pk] = a
	}
	return 0, nil
}
