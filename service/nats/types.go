package nats

import (
	"time"

	"github.com/brojonat/tipjar/service/solana"
	"github.com/brojonat/tipjar/service/tipjar"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// EventKind is the type of a tip jar event.
type EventKind string

const (
	EventTip         EventKind = "tip"
	EventWithdrawal  EventKind = "withdrawal"
	EventInitialized EventKind = "initialized"
)

// Event is a confirmed tip jar transaction, published to the subject
// "tipjar.{tipjar_address}" in JetStream.
type Event struct {
	ID   string    `json:"id"`
	Kind EventKind `json:"kind"`

	TipJar  string `json:"tipjar"`
	Actor   string `json:"actor"` // tipper or owner
	Amount  uint64 `json:"amount"`
	Network string `json:"network"`

	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`

	OccurredAt  time.Time `json:"occurred_at"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// Subject returns the JetStream subject for events about address.
func Subject(address string) string {
	return SubjectPrefix + address
}

// FromReceipt converts a confirmed submission into an event.
func FromReceipt(receipt *solana.Receipt, address solanago.PublicKey, network string, clock clockwork.Clock) *Event {
	kind := EventTip
	switch receipt.Instruction {
	case tipjar.InstructionWithdraw:
		kind = EventWithdrawal
	case tipjar.InstructionInitialize:
		kind = EventInitialized
	}
	return &Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		TipJar:     address.String(),
		Actor:      receipt.Payer.String(),
		Amount:     receipt.Amount,
		Network:    network,
		Signature:  receipt.Signature.String(),
		Slot:       receipt.Slot,
		OccurredAt: clock.Now().UTC(),
	}
}
