package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/tipjar/service/solana"
	"github.com/brojonat/tipjar/service/tipjar"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromReceipt(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	jar := solanago.NewWallet().PublicKey()
	payer := solanago.NewWallet().PublicKey()

	tests := []struct {
		instruction tipjar.InstructionKind
		want        EventKind
	}{
		{tipjar.InstructionSendTip, EventTip},
		{tipjar.InstructionWithdraw, EventWithdrawal},
		{tipjar.InstructionInitialize, EventInitialized},
	}
	for _, tt := range tests {
		t.Run(string(tt.instruction), func(t *testing.T) {
			receipt := &solana.Receipt{
				Signature:   solanago.Signature{7},
				Instruction: tt.instruction,
				Payer:       payer,
				Amount:      500_000_000,
				Slot:        42,
			}

			event := FromReceipt(receipt, jar, "devnet", clock)

			_, err := uuid.Parse(event.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, event.Kind)
			assert.Equal(t, jar.String(), event.TipJar)
			assert.Equal(t, payer.String(), event.Actor)
			assert.Equal(t, uint64(500_000_000), event.Amount)
			assert.Equal(t, "devnet", event.Network)
			assert.Equal(t, uint64(42), event.Slot)
			assert.Equal(t, clock.Now(), event.OccurredAt)
		})
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "tipjar.abc", Subject("abc"))
	assert.Equal(t, "tipjar.*", StreamSubjects)
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	m := NewMockPublisher()

	require.NoError(t, m.Publish(ctx, &Event{TipJar: "a"}))
	require.NoError(t, m.Publish(ctx, &Event{TipJar: "b"}))
	assert.Len(t, m.Events(), 2)
	assert.Len(t, m.EventsForTipJar("a"), 1)

	m.SetPublishError(errors.New("nats down"))
	assert.Error(t, m.Publish(ctx, &Event{TipJar: "a"}))
	assert.Len(t, m.Events(), 2)

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
}
