package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/tipjar/service/metrics"
	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/brojonat/tipjar/service/wallet"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
)

// RPCClient is the subset of Solana JSON-RPC the tip jar needs.
// Tests substitute an in-memory chain.
type RPCClient interface {
	GetAccountInfo(ctx context.Context, address solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetAccountInfoResult, error)
	GetBalance(ctx context.Context, address solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

const DefaultPollInterval = 500 * time.Millisecond

// Client reads the tip jar account and submits its instructions.
type Client struct {
	rpc          RPCClient
	logger       *slog.Logger
	metrics      *metrics.Metrics
	endpoint     string // metrics label, e.g. "local", "devnet"
	commitment   rpc.CommitmentType
	pollInterval time.Duration
	clock        clockwork.Clock
}

// Option configures a Client.
type Option func(*Client)

// WithCommitment sets the commitment used for reads and awaited on submit.
func WithCommitment(c rpc.CommitmentType) Option {
	return func(cl *Client) { cl.commitment = c }
}

// WithPollInterval sets the delay between signature status polls.
func WithPollInterval(d time.Duration) Option {
	return func(cl *Client) { cl.pollInterval = d }
}

// WithClock replaces the clock driving confirmation polling.
func WithClock(clock clockwork.Clock) Option {
	return func(cl *Client) { cl.clock = clock }
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling. If m is nil, no
// metrics are recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		rpc:          rpcClient,
		logger:       logger,
		metrics:      m,
		endpoint:     endpoint,
		commitment:   rpc.CommitmentConfirmed,
		pollInterval: DefaultPollInterval,
		clock:        clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) recordRPC(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}

// FetchTipJar reads and decodes the tip jar account. It returns
// tipjar.ErrAccountNotFound when the account is missing or undecodable.
func (c *Client) FetchTipJar(ctx context.Context, address solana.PublicKey) (*tipjar.Account, error) {
	start := time.Now()
	res, err := c.rpc.GetAccountInfo(ctx, address, c.commitment)
	if errors.Is(err, rpc.ErrNotFound) {
		c.recordRPC("getAccountInfo", start, nil)
		return nil, fmt.Errorf("%w: %s", tipjar.ErrAccountNotFound, address)
	}
	c.recordRPC("getAccountInfo", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get account info for %s: %w", address, err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return nil, fmt.Errorf("%w: %s", tipjar.ErrAccountNotFound, address)
	}

	acct, err := tipjar.DecodeAccount(res.Value.Data.GetBinary())
	if err != nil {
		c.logger.WarnContext(ctx, "tip jar account did not decode",
			"address", address.String(),
			"error", err,
		)
		return nil, err
	}
	return acct, nil
}

// GetNativeBalance returns the lamport balance held by address.
func (c *Client) GetNativeBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	start := time.Now()
	res, err := c.rpc.GetBalance(ctx, address, c.commitment)
	c.recordRPC("getBalance", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance for %s: %w", address, err)
	}
	return res.Value, nil
}

// RentFloor returns the minimum balance that keeps a tip jar account
// rent-exempt. Withdrawals can never dip below it.
func (c *Client) RentFloor(ctx context.Context) (uint64, error) {
	start := time.Now()
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, tipjar.AccountSize, c.commitment)
	c.recordRPC("getMinimumBalanceForRentExemption", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to get rent exemption minimum: %w", err)
	}
	return lamports, nil
}

// ReadSnapshot performs the three reads that make up one view of the tip
// jar. A missing account yields a snapshot with a nil Account and no error.
func (c *Client) ReadSnapshot(ctx context.Context, address solana.PublicKey) (Snapshot, error) {
	snap := Snapshot{Address: address}

	acct, err := c.FetchTipJar(ctx, address)
	switch {
	case errors.Is(err, tipjar.ErrAccountNotFound):
	case err != nil:
		return Snapshot{}, err
	default:
		snap.Account = acct
	}

	if snap.Balance, err = c.GetNativeBalance(ctx, address); err != nil {
		return Snapshot{}, err
	}
	if snap.RentFloor, err = c.RentFloor(ctx); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Initialize creates the tip jar account with signer as owner.
func (c *Client) Initialize(ctx context.Context, signer wallet.Signer, program tipjar.Program) (*Receipt, error) {
	owner, err := signer.PublicKey()
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, signer, tipjar.NewInitializeInstruction(program, owner))
}

// SendTip transfers amount lamports from the signer into the tip jar.
// A zero amount is rejected before any RPC call.
func (c *Client) SendTip(ctx context.Context, signer wallet.Signer, program tipjar.Program, amount uint64) (*Receipt, error) {
	if amount == 0 {
		return nil, tipjar.ErrInvalidAmount
	}
	tipper, err := signer.PublicKey()
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, signer, tipjar.NewSendTipInstruction(program, tipper, amount))
}

// Withdraw moves amount lamports from the tip jar to the signer. The
// program rejects non-owners and amounts above the available balance.
func (c *Client) Withdraw(ctx context.Context, signer wallet.Signer, program tipjar.Program, amount uint64) (*Receipt, error) {
	if amount == 0 {
		return nil, tipjar.ErrInvalidAmount
	}
	owner, err := signer.PublicKey()
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, signer, tipjar.NewWithdrawInstruction(program, owner, amount))
}

// Submit builds a transaction around ix with the signer as fee payer,
// signs, sends and waits for the client's commitment level.
// Program rejections are returned as *tipjar.ProgramError; every other
// failure after signing wraps tipjar.ErrSubmission.
func (c *Client) Submit(ctx context.Context, signer wallet.Signer, ix solana.Instruction) (*Receipt, error) {
	payer, err := signer.PublicKey()
	if err != nil {
		return nil, err
	}
	receipt := &Receipt{Payer: payer}
	if data, err := ix.Data(); err == nil {
		if kind, amount, err := tipjar.DecodeInstructionData(data); err == nil {
			receipt.Instruction = kind
			receipt.Amount = amount
		}
	}
	kind := string(receipt.Instruction)
	if kind == "" {
		kind = "unknown"
	}

	polls := 0
	outcome := "error"
	defer metrics.Timer(time.Now(), func(seconds float64) {
		if c.metrics != nil {
			c.metrics.RecordSubmission(kind, outcome, seconds, polls)
		}
	})()

	bhStart := time.Now()
	bh, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	c.recordRPC("getLatestBlockhash", bhStart, err)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get latest blockhash: %w", tipjar.ErrSubmission, err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		bh.Value.Blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	if err := signer.SignTransaction(tx); err != nil {
		return nil, err
	}

	sendStart := time.Now()
	sig, err := c.rpc.SendTransaction(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	c.recordRPC("sendTransaction", sendStart, err)
	if err != nil {
		classified := tipjar.ClassifyError(err)
		if isProgramError(classified) {
			outcome = "rejected"
		}
		c.logger.WarnContext(ctx, "transaction rejected before submission",
			"instruction", kind,
			"payer", payer.String(),
			"error", err,
		)
		return nil, classified
	}
	receipt.Signature = sig

	c.logger.InfoContext(ctx, "transaction sent",
		"instruction", kind,
		"signature", sig.String(),
		"amount", receipt.Amount,
	)

	status, n, err := c.awaitConfirmation(ctx, sig)
	polls = n
	if err != nil {
		if isProgramError(err) {
			outcome = "rejected"
		}
		c.logger.WarnContext(ctx, "transaction failed",
			"instruction", kind,
			"signature", sig.String(),
			"error", err,
		)
		return nil, err
	}
	receipt.Slot = status.Slot
	receipt.Status = status.ConfirmationStatus
	outcome = "confirmed"

	if c.metrics != nil && receipt.Amount > 0 {
		c.metrics.RecordLamportsTransferred(kind, receipt.Amount)
	}
	c.logger.InfoContext(ctx, "transaction confirmed",
		"instruction", kind,
		"signature", sig.String(),
		"slot", status.Slot,
		"polls", polls,
	)
	return receipt, nil
}

// awaitConfirmation polls the signature status until it reaches the
// client's commitment, the transaction fails or ctx is done.
func (c *Client) awaitConfirmation(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, int, error) {
	polls := 0
	for {
		polls++
		start := time.Now()
		res, err := c.rpc.GetSignatureStatuses(ctx, sig)
		c.recordRPC("getSignatureStatuses", start, err)

		switch {
		case err != nil:
			// Transient; the caller's context bounds how long we keep trying.
			c.logger.DebugContext(ctx, "signature status poll failed",
				"signature", sig.String(),
				"error", err,
			)
		case res != nil && len(res.Value) > 0 && res.Value[0] != nil:
			status := res.Value[0]
			if status.Err != nil {
				return nil, polls, tipjar.ErrorFromStatus(status.Err)
			}
			if reached(status.ConfirmationStatus, c.commitment) {
				return status, polls, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, polls, fmt.Errorf("%w: awaiting confirmation of %s: %w", tipjar.ErrSubmission, sig, ctx.Err())
		case <-c.clock.After(c.pollInterval):
		}
	}
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	rank := map[rpc.ConfirmationStatusType]int{
		rpc.ConfirmationStatusProcessed: 1,
		rpc.ConfirmationStatusConfirmed: 2,
		rpc.ConfirmationStatusFinalized: 3,
	}
	wantRank := map[rpc.CommitmentType]int{
		rpc.CommitmentProcessed: 1,
		rpc.CommitmentConfirmed: 2,
		rpc.CommitmentFinalized: 3,
	}[want]
	if wantRank == 0 {
		wantRank = 2
	}
	return rank[status] >= wantRank
}

func isProgramError(err error) bool {
	var perr *tipjar.ProgramError
	return errors.As(err, &perr)
}
