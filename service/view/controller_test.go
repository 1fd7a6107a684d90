package view

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/tipjar/service/metrics"
	"github.com/brojonat/tipjar/service/nats"
	"github.com/brojonat/tipjar/service/solana"
	"github.com/brojonat/tipjar/service/solana/solanatest"
	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/brojonat/tipjar/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

type env struct {
	chain     *solanatest.Chain
	client    *solana.Client
	program   tipjar.Program
	ownerKey  solanago.PrivateKey
	publisher *nats.MockPublisher
	clock     *clockwork.FakeClock
}

func newEnv(t *testing.T, initialize bool) *env {
	t.Helper()
	program, err := tipjar.NewProgram(tipjar.DefaultProgramID)
	require.NoError(t, err)

	chain := solanatest.NewChain(program)
	client := solana.NewClient(chain, "test", nil, discardLogger(), solana.WithPollInterval(time.Millisecond))

	ownerKey := solanago.NewWallet().PrivateKey
	chain.Airdrop(ownerKey.PublicKey(), 5*solanago.LAMPORTS_PER_SOL)
	if initialize {
		_, err := client.Initialize(context.Background(), wallet.Static(ownerKey), program)
		require.NoError(t, err)
	}

	return &env{
		chain:     chain,
		client:    client,
		program:   program,
		ownerKey:  ownerKey,
		publisher: nats.NewMockPublisher(),
		clock:     clockwork.NewFakeClockAt(testTime),
	}
}

func (e *env) controller(t *testing.T, w wallet.Wallet) *Controller {
	t.Helper()
	return e.controllerWithChain(t, w, e.client)
}

func (e *env) controllerWithChain(t *testing.T, w wallet.Wallet, chain Chain) *Controller {
	t.Helper()
	return New(context.Background(), Config{
		Chain:     chain,
		Wallet:    w,
		Program:   e.program,
		Network:   "local",
		Publisher: e.publisher,
		Metrics:   metrics.NewMetrics(prometheus.NewRegistry()),
		Clock:     e.clock,
		Logger:    discardLogger(),
	})
}

func (e *env) funded(lamports uint64) *wallet.KeypairWallet {
	key := solanago.NewWallet().PrivateKey
	e.chain.Airdrop(key.PublicKey(), lamports)
	return wallet.NewKeypairWallet(key)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMount_Uninitialized(t *testing.T) {
	e := newEnv(t, false)
	c := e.controller(t, e.funded(0))

	v := c.View()
	assert.Equal(t, Disconnected, v.State)
	assert.False(t, v.Connected)
	assert.False(t, v.Initialized)
	assert.Zero(t, v.TotalTips)
	assert.Equal(t, "0.0000", v.TotalTipsSOL)
	assert.Empty(t, v.ReadError)
	assert.Equal(t, e.program.Address().String(), v.Address)
	assert.Equal(t,
		tipjar.BuildScanURI(e.program.Address(), tipjar.DefaultSuggestedTip, tipjar.DefaultPayLabel, tipjar.DefaultPayMessage),
		v.PayURI,
	)
	assert.Equal(t, []string{"0.05", "0.1", "0.5"}, v.QuickTips)
	assert.Equal(t, testTime, v.FetchedAt)
}

func TestConnectionStates(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)

	t.Run("owner", func(t *testing.T) {
		c := e.controller(t, wallet.NewKeypairWallet(e.ownerKey))
		assert.Equal(t, Disconnected, c.View().State)

		v, err := c.Connect(ctx)
		require.NoError(t, err)
		assert.Equal(t, ConnectedOwner, v.State)
		assert.True(t, v.IsOwner)
		assert.Equal(t, e.ownerKey.PublicKey().String(), v.Wallet)

		v = c.Disconnect(ctx)
		assert.Equal(t, Disconnected, v.State)
		assert.False(t, v.IsOwner)
		assert.Empty(t, v.Wallet)
	})

	t.Run("viewer", func(t *testing.T) {
		c := e.controller(t, e.funded(0))
		v, err := c.Connect(ctx)
		require.NoError(t, err)
		assert.Equal(t, ConnectedViewer, v.State)
		assert.False(t, v.IsOwner)
		assert.Equal(t, e.ownerKey.PublicKey().String(), v.Owner)
	})

	t.Run("viewer when account missing", func(t *testing.T) {
		empty := newEnv(t, false)
		c := empty.controller(t, wallet.NewKeypairWallet(empty.ownerKey))
		v, err := c.Connect(ctx)
		require.NoError(t, err)
		assert.Equal(t, ConnectedViewer, v.State)
	})
}

func TestSendTip_Scenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	tipper := e.funded(2 * solanago.LAMPORTS_PER_SOL)
	c := e.controller(t, tipper)
	_, err := c.Connect(ctx)
	require.NoError(t, err)

	for _, amount := range []string{"0.5", "0.1", "0.2"} {
		_, err := c.SendTip(ctx, amount)
		require.NoError(t, err, amount)
	}

	v := c.View()
	assert.Equal(t, uint64(3), v.TipCount)
	assert.Equal(t, uint64(800_000_000), v.TotalTips)
	assert.Equal(t, "0.8000", v.TotalTipsSOL)
	assert.Equal(t, uint64(800_000_000), v.Available)
	assert.Equal(t, ConnectedViewer, v.State)

	events := e.publisher.EventsForTipJar(e.program.Address().String())
	require.Len(t, events, 3)
	assert.Equal(t, nats.EventTip, events[0].Kind)
	assert.Equal(t, uint64(500_000_000), events[0].Amount)
	assert.Equal(t, "local", events[0].Network)
	assert.Equal(t, testTime, events[0].OccurredAt)
}

func TestSendTip_ValidationNeverSubmits(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	c := e.controller(t, e.funded(solanago.LAMPORTS_PER_SOL))
	_, err := c.Connect(ctx)
	require.NoError(t, err)
	sent := e.chain.Sent()
	before := c.View()

	for _, input := range []string{"0", "", "abc", "-1", "0.0000000001"} {
		_, err := c.SendTip(ctx, input)
		require.Error(t, err, input)
		assert.True(t, IsValidation(err), input)
		assert.ErrorIs(t, err, tipjar.ErrInvalidAmount, input)
	}

	assert.Equal(t, sent, e.chain.Sent())
	after := c.View()
	assert.Equal(t, before.TotalTips, after.TotalTips)
	assert.Equal(t, before.TipCount, after.TipCount)
	assert.Empty(t, e.publisher.Events())
}

func TestSendTip_NotConnected(t *testing.T) {
	e := newEnv(t, true)
	c := e.controller(t, e.funded(solanago.LAMPORTS_PER_SOL))

	_, err := c.SendTip(context.Background(), "0.1")
	assert.ErrorIs(t, err, wallet.ErrNotConnected)
	assert.Equal(t, 1, e.chain.Sent())
}

func TestSendTip_TipperUnderfunded(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	c := e.controller(t, e.funded(1000))
	_, err := c.Connect(ctx)
	require.NoError(t, err)

	_, err = c.SendTip(ctx, "0.5")
	require.Error(t, err)
	assert.False(t, IsValidation(err))
	assert.ErrorIs(t, err, tipjar.ErrSubmission)
	assert.NotErrorIs(t, err, tipjar.ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "insufficient lamports 1000, need 500000000")

	var perr *tipjar.ProgramError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, uint32(1), perr.Code)

	assert.Equal(t, ConnectedViewer, c.View().State)
	assert.Zero(t, c.View().TipCount)
	assert.Empty(t, e.publisher.Events())
}

func TestWithdraw_OwnerHalfOfAvailable(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)

	tipper := e.controller(t, e.funded(2*solanago.LAMPORTS_PER_SOL))
	_, err := tipper.Connect(ctx)
	require.NoError(t, err)
	_, err = tipper.SendTip(ctx, "0.8")
	require.NoError(t, err)

	owner := e.controller(t, wallet.NewKeypairWallet(e.ownerKey))
	_, err = owner.Connect(ctx)
	require.NoError(t, err)

	before := owner.View()
	ownerBefore := e.chain.Balance(e.ownerKey.PublicKey())
	half := before.Available / 2

	receipt, err := owner.Withdraw(ctx, tipjar.FormatSOLExact(half))
	require.NoError(t, err)
	assert.Equal(t, half, receipt.Amount)

	after := owner.View()
	assert.Equal(t, before.Balance-half, after.Balance)
	assert.Equal(t, ownerBefore+half, e.chain.Balance(e.ownerKey.PublicKey()))
	assert.Equal(t, before.TotalTips, after.TotalTips)
	assert.Equal(t, ConnectedOwner, after.State)

	last := e.publisher.Events()[len(e.publisher.Events())-1]
	assert.Equal(t, nats.EventWithdrawal, last.Kind)
	assert.Equal(t, e.ownerKey.PublicKey().String(), last.Actor)
}

func TestWithdraw_NonOwner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	c := e.controller(t, e.funded(solanago.LAMPORTS_PER_SOL))
	_, err := c.Connect(ctx)
	require.NoError(t, err)
	_, err = c.SendTip(ctx, "0.3")
	require.NoError(t, err)
	sent := e.chain.Sent()
	balance := e.chain.Balance(e.program.Address())

	_, err = c.Withdraw(ctx, "0.1")
	assert.ErrorIs(t, err, tipjar.ErrNotOwner)
	assert.Equal(t, sent, e.chain.Sent())
	assert.Equal(t, balance, e.chain.Balance(e.program.Address()))
}

func TestWithdraw_ProgramRejectsNonOwner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	stranger := e.funded(solanago.LAMPORTS_PER_SOL)
	c := e.controller(t, stranger)
	_, err := c.Connect(ctx)
	require.NoError(t, err)
	_, err = c.SendTip(ctx, "0.3")
	require.NoError(t, err)
	balance := e.chain.Balance(e.program.Address())

	// Bypass the local ownership check and let the program decide.
	_, err = e.client.Withdraw(ctx, stranger, e.program, 1)
	assert.ErrorIs(t, err, tipjar.ErrNotOwner)
	assert.Equal(t, balance, e.chain.Balance(e.program.Address()))
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	c := e.controller(t, wallet.NewKeypairWallet(e.ownerKey))
	_, err := c.Connect(ctx)
	require.NoError(t, err)

	_, err = c.Withdraw(ctx, "1")
	assert.ErrorIs(t, err, tipjar.ErrInsufficientFunds)
	assert.ErrorIs(t, err, tipjar.ErrSubmission)
	assert.False(t, IsValidation(err))
	assert.Equal(t, ConnectedOwner, c.View().State)
}

func TestWithdrawAll(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)

	tipper := e.controller(t, e.funded(solanago.LAMPORTS_PER_SOL))
	_, err := tipper.Connect(ctx)
	require.NoError(t, err)
	_, err = tipper.SendTip(ctx, "0.25")
	require.NoError(t, err)

	owner := e.controller(t, wallet.NewKeypairWallet(e.ownerKey))
	_, err = owner.Connect(ctx)
	require.NoError(t, err)

	receipt, err := owner.WithdrawAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000_000), receipt.Amount)
	assert.Zero(t, owner.View().Available)
	assert.Equal(t, solanatest.DefaultRentFloor, e.chain.Balance(e.program.Address()))

	_, err = owner.WithdrawAll(ctx)
	assert.True(t, IsValidation(err))
	assert.ErrorIs(t, err, tipjar.ErrInsufficientFunds)
}

func TestRentFloorReadFromNetwork(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)

	tipper := e.controller(t, e.funded(solanago.LAMPORTS_PER_SOL))
	_, err := tipper.Connect(ctx)
	require.NoError(t, err)
	_, err = tipper.SendTip(ctx, "0.25")
	require.NoError(t, err)

	owner := e.controller(t, wallet.NewKeypairWallet(e.ownerKey))
	_, err = owner.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, solanatest.DefaultRentFloor, owner.View().RentFloor)
	assert.Equal(t, uint64(250_000_000), owner.View().Available)

	raised := solanatest.DefaultRentFloor + 50_000_000
	e.chain.SetRentFloor(raised)
	require.NoError(t, owner.Refresh(ctx, TriggerManual))

	v := owner.View()
	assert.Equal(t, raised, v.RentFloor)
	assert.Equal(t, uint64(200_000_000), v.Available)

	receipt, err := owner.WithdrawAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(200_000_000), receipt.Amount)
	assert.Equal(t, raised, e.chain.Balance(e.program.Address()))
	assert.Zero(t, owner.View().Available)
}

// blockingChain holds SendTip until released.
type blockingChain struct {
	Chain
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingChain) SendTip(ctx context.Context, signer wallet.Signer, program tipjar.Program, amount uint64) (*solana.Receipt, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.Chain.SendTip(ctx, signer, program, amount)
}

func TestSubmittingGate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	chain := &blockingChain{
		Chain:   e.client,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := e.controllerWithChain(t, e.funded(solanago.LAMPORTS_PER_SOL), chain)
	_, err := c.Connect(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.SendTip(ctx, "0.1")
		done <- err
	}()
	<-chain.started

	assert.Equal(t, Submitting, c.View().State)
	_, err = c.SendTip(ctx, "0.2")
	assert.ErrorIs(t, err, ErrBusy)

	close(chain.release)
	require.NoError(t, <-done)

	v := c.View()
	assert.Equal(t, ConnectedViewer, v.State)
	assert.Equal(t, uint64(1), v.TipCount)
	assert.Equal(t, uint64(100_000_000), v.TotalTips)
}

func TestRefresh_ReadErrorKeepsData(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	c := e.controller(t, e.funded(0))
	require.True(t, c.View().Initialized)

	e.chain.Err = errors.New("connection refused")
	e.clock.Advance(time.Minute)
	err := c.Refresh(ctx, TriggerManual)
	require.Error(t, err)

	v := c.View()
	assert.True(t, v.Initialized)
	assert.Contains(t, v.ReadError, "connection refused")
	assert.Equal(t, testTime.Add(time.Minute), v.FetchedAt)

	e.chain.Err = nil
	require.NoError(t, c.Refresh(ctx, TriggerManual))
	assert.Empty(t, c.View().ReadError)
}

func TestSubmissionFailure_RefreshesAndDoesNotPublish(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	c := e.controller(t, e.funded(solanago.LAMPORTS_PER_SOL))
	_, err := c.Connect(ctx)
	require.NoError(t, err)
	reads := e.chain.Reads()

	_, err = c.SendTip(ctx, "0.1")
	assert.ErrorIs(t, err, tipjar.ErrAccountNotInitialized)
	assert.Greater(t, e.chain.Reads(), reads)
	assert.Empty(t, e.publisher.Events())
	assert.Equal(t, ConnectedViewer, c.View().State)
}

func TestPublishFailureDoesNotFailTip(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	e.publisher.SetPublishError(errors.New("nats down"))
	c := e.controller(t, e.funded(solanago.LAMPORTS_PER_SOL))
	_, err := c.Connect(ctx)
	require.NoError(t, err)

	_, err = c.SendTip(ctx, "0.1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.View().TipCount)
}
