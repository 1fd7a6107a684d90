// Package view holds the tip jar page state: one snapshot of on-chain
// data plus the wallet connection, from which everything the page shows
// is derived.
package view

import (
	"time"

	"github.com/brojonat/tipjar/service/solana"
	"github.com/brojonat/tipjar/service/tipjar"
	solanago "github.com/gagliardetto/solana-go"
)

// State is the controller's position in the connection state machine.
type State string

const (
	Disconnected    State = "disconnected"
	ConnectedViewer State = "connected_viewer"
	ConnectedOwner  State = "connected_owner"
	Submitting      State = "submitting"
)

// Snapshot is the last read of the tip jar. It is replaced whole on
// every refresh and never mutated.
type Snapshot struct {
	solana.Snapshot
	FetchedAt time.Time
	// ReadError is set when the last refresh failed; the previous data is kept.
	ReadError string
}

// View is what the page renders. It is recomputed from Snapshot and the
// wallet identity on every read.
type View struct {
	State     State  `json:"state"`
	Connected bool   `json:"connected"`
	Wallet    string `json:"wallet,omitempty"`
	IsOwner   bool   `json:"is_owner"`

	Address     string `json:"address"`
	Network     string `json:"network"`
	Initialized bool   `json:"initialized"`
	Owner       string `json:"owner,omitempty"`

	TotalTips uint64 `json:"total_tips"`
	TipCount  uint64 `json:"tip_count"`
	Balance   uint64 `json:"balance"`
	RentFloor uint64 `json:"rent_floor"`
	Available uint64 `json:"available"`

	TotalTipsSOL string `json:"total_tips_sol"`
	BalanceSOL   string `json:"balance_sol"`
	AvailableSOL string `json:"available_sol"`

	PayURI    string   `json:"pay_uri"`
	QuickTips []string `json:"quick_tips"`

	FetchedAt time.Time `json:"fetched_at"`
	ReadError string    `json:"read_error,omitempty"`
}

// PayLink configures the scan card's Solana Pay request.
type PayLink struct {
	SuggestedTip uint64
	Label        string
	Message      string
}

// DefaultPayLink is 0.1 SOL with the standard label and message.
var DefaultPayLink = PayLink{
	SuggestedTip: tipjar.DefaultSuggestedTip,
	Label:        tipjar.DefaultPayLabel,
	Message:      tipjar.DefaultPayMessage,
}

// derive computes the View for a snapshot and wallet identity.
// identity is nil while disconnected.
func derive(snap Snapshot, identity *solanago.PublicKey, submitting bool, address solanago.PublicKey, network string, pay PayLink) View {
	v := View{
		Address:   address.String(),
		Network:   network,
		Balance:   snap.Balance,
		RentFloor: snap.RentFloor,
		Available: snap.Available(),
		PayURI:    tipjar.BuildScanURI(address, pay.SuggestedTip, pay.Label, pay.Message),
		FetchedAt: snap.FetchedAt,
		ReadError: snap.ReadError,
	}
	for _, lamports := range tipjar.QuickTipPresets {
		v.QuickTips = append(v.QuickTips, tipjar.FormatSOLExact(lamports))
	}

	if acct := snap.Account; acct != nil {
		v.Initialized = true
		v.Owner = acct.Owner.String()
		v.TotalTips = acct.TotalTips
		v.TipCount = acct.TipCount
	}
	v.TotalTipsSOL = tipjar.FormatSOL(v.TotalTips)
	v.BalanceSOL = tipjar.FormatSOL(v.Balance)
	v.AvailableSOL = tipjar.FormatSOL(v.Available)

	switch {
	case identity == nil:
		v.State = Disconnected
	default:
		v.Connected = true
		v.Wallet = identity.String()
		v.IsOwner = snap.Account != nil && snap.Account.Owner.Equals(*identity)
		v.State = ConnectedViewer
		if v.IsOwner {
			v.State = ConnectedOwner
		}
	}
	if submitting {
		v.State = Submitting
	}
	return v
}
