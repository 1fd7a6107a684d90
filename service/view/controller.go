package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/tipjar/service/metrics"
	"github.com/brojonat/tipjar/service/nats"
	"github.com/brojonat/tipjar/service/solana"
	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/brojonat/tipjar/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
)

// Chain is the on-chain surface the controller drives. *solana.Client
// implements it.
type Chain interface {
	ReadSnapshot(ctx context.Context, address solanago.PublicKey) (solana.Snapshot, error)
	SendTip(ctx context.Context, signer wallet.Signer, program tipjar.Program, amount uint64) (*solana.Receipt, error)
	Withdraw(ctx context.Context, signer wallet.Signer, program tipjar.Program, amount uint64) (*solana.Receipt, error)
}

// Refresh triggers, used as metric labels.
const (
	TriggerMount      = "mount"
	TriggerConnect    = "connect"
	TriggerDisconnect = "disconnect"
	TriggerSubmit     = "submit"
	TriggerManual     = "manual"
)

// postSubmitRefreshTimeout bounds the refresh that follows a submission,
// which runs even if the caller's context is already done.
const postSubmitRefreshTimeout = 15 * time.Second

// Config wires a Controller.
type Config struct {
	Chain   Chain
	Wallet  wallet.Wallet
	Program tipjar.Program
	Network string
	PayLink PayLink

	Publisher nats.Publisher   // optional
	Metrics   *metrics.Metrics // optional
	Clock     clockwork.Clock  // defaults to the real clock
	Logger    *slog.Logger
}

// Controller serializes user actions against one tip jar and keeps the
// snapshot the page is rendered from.
type Controller struct {
	chain     Chain
	wallet    wallet.Wallet
	program   tipjar.Program
	network   string
	pay       PayLink
	publisher nats.Publisher
	metrics   *metrics.Metrics
	clock     clockwork.Clock
	logger    *slog.Logger

	mu         sync.RWMutex
	snapshot   Snapshot
	submitting bool
}

// New builds a Controller and performs the initial (mount) refresh. A
// failed read is recorded in the snapshot, not returned.
func New(ctx context.Context, cfg Config) *Controller {
	c := &Controller{
		chain:     cfg.Chain,
		wallet:    cfg.Wallet,
		program:   cfg.Program,
		network:   cfg.Network,
		pay:       cfg.PayLink,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.pay == (PayLink{}) {
		c.pay = DefaultPayLink
	}
	_ = c.Refresh(ctx, TriggerMount)
	return c
}

// View derives the current page state.
func (c *Controller) View() View {
	c.mu.RLock()
	snap, submitting := c.snapshot, c.submitting
	c.mu.RUnlock()

	var identity *solanago.PublicKey
	if pk, err := c.wallet.PublicKey(); err == nil {
		identity = &pk
	}
	return derive(snap, identity, submitting, c.program.Address(), c.network, c.pay)
}

// Address is the tip jar account this controller drives.
func (c *Controller) Address() solanago.PublicKey {
	return c.program.Address()
}

// PayLink returns the configured scan card request.
func (c *Controller) PayLink() PayLink {
	return c.pay
}

// Snapshot returns the last stored read.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Refresh re-reads account, balance and rent floor. The newest completed
// read wins. On failure the previous data is kept and the error recorded.
func (c *Controller) Refresh(ctx context.Context, trigger string) error {
	address := c.program.Address()
	snap, err := c.chain.ReadSnapshot(ctx, address)
	now := c.clock.Now().UTC()

	c.mu.Lock()
	if err != nil {
		prev := c.snapshot
		prev.ReadError = err.Error()
		prev.FetchedAt = now
		c.snapshot = prev
	} else {
		c.snapshot = Snapshot{Snapshot: snap, FetchedAt: now}
	}
	current := c.snapshot
	c.mu.Unlock()

	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordRefresh(trigger, status)
		if err == nil && current.Account != nil {
			c.metrics.RecordTipJarState(address.String(), current.Account.TotalTips, current.Account.TipCount, current.Available())
		}
	}

	if err != nil {
		c.logger.WarnContext(ctx, "tip jar refresh failed",
			"trigger", trigger,
			"address", address.String(),
			"error", err,
		)
		return fmt.Errorf("failed to refresh tip jar: %w", err)
	}
	c.logger.DebugContext(ctx, "tip jar refreshed",
		"trigger", trigger,
		"initialized", current.Account != nil,
		"balance", current.Balance,
	)
	return nil
}

// Connect connects the wallet and refreshes.
func (c *Controller) Connect(ctx context.Context) (View, error) {
	pk, err := c.wallet.Connect()
	if err != nil {
		return c.View(), fmt.Errorf("failed to connect wallet: %w", err)
	}
	c.logger.InfoContext(ctx, "wallet connected", "wallet", pk.String())
	_ = c.Refresh(ctx, TriggerConnect)
	return c.View(), nil
}

// Disconnect disconnects the wallet and refreshes.
func (c *Controller) Disconnect(ctx context.Context) View {
	c.wallet.Disconnect()
	c.logger.InfoContext(ctx, "wallet disconnected")
	_ = c.Refresh(ctx, TriggerDisconnect)
	return c.View()
}

// SendTip parses a SOL amount and tips it from the connected wallet.
func (c *Controller) SendTip(ctx context.Context, input string) (*solana.Receipt, error) {
	amount, err := tipjar.ParseSOL(input)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Err: err}
	}
	if _, err := c.wallet.PublicKey(); err != nil {
		return nil, err
	}
	return c.submit(ctx, func(ctx context.Context) (*solana.Receipt, error) {
		return c.chain.SendTip(ctx, c.wallet, c.program, amount)
	})
}

// Withdraw parses a SOL amount and withdraws it to the connected owner.
func (c *Controller) Withdraw(ctx context.Context, input string) (*solana.Receipt, error) {
	amount, err := tipjar.ParseSOL(input)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Err: err}
	}
	return c.withdraw(ctx, amount)
}

// WithdrawAll withdraws the whole available balance.
func (c *Controller) WithdrawAll(ctx context.Context) (*solana.Receipt, error) {
	available := c.Snapshot().Available()
	if available == 0 {
		return nil, &ValidationError{Field: "amount", Err: fmt.Errorf("%w: nothing available to withdraw", tipjar.ErrInsufficientFunds)}
	}
	return c.withdraw(ctx, available)
}

func (c *Controller) withdraw(ctx context.Context, amount uint64) (*solana.Receipt, error) {
	pk, err := c.wallet.PublicKey()
	if err != nil {
		return nil, err
	}
	// The program enforces ownership; this only avoids a doomed submission.
	if acct := c.Snapshot().Account; acct == nil || !acct.Owner.Equals(pk) {
		return nil, tipjar.ErrNotOwner
	}
	return c.submit(ctx, func(ctx context.Context) (*solana.Receipt, error) {
		return c.chain.Withdraw(ctx, c.wallet, c.program, amount)
	})
}

// submit runs send inside the Submitting gate, then refreshes and
// publishes the outcome.
func (c *Controller) submit(ctx context.Context, send func(context.Context) (*solana.Receipt, error)) (*solana.Receipt, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.submitting = true
	c.mu.Unlock()

	receipt, err := send(ctx)

	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()

	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postSubmitRefreshTimeout)
	defer cancel()
	_ = c.Refresh(refreshCtx, TriggerSubmit)

	if err != nil {
		return nil, err
	}
	c.publish(ctx, receipt)
	return receipt, nil
}

func (c *Controller) publish(ctx context.Context, receipt *solana.Receipt) {
	if c.publisher == nil {
		return
	}
	event := nats.FromReceipt(receipt, c.program.Address(), c.network, c.clock)
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish tip jar event",
			"signature", event.Signature,
			"error", err,
		)
	}
}

// IsValidation reports whether err was caught before submission.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
