package server

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"

	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/brojonat/tipjar/service/view"
	"github.com/gagliardetto/solana-go"
)

const (
	defaultQRSize = 280
	maxQRSize     = 1024
	minQRSize     = 64
)

// PayCard is the scan-to-tip payment request shown next to the tip form.
type PayCard struct {
	Address    string `json:"address"`
	Amount     uint64 `json:"amount"`     // lamports
	AmountSOL  string `json:"amount_sol"` // e.g. "0.1"
	Label      string `json:"label,omitempty"`
	Message    string `json:"message,omitempty"`
	PaymentURL string `json:"payment_url"`            // Solana Pay URI
	QRCodeData string `json:"qr_code_data,omitempty"` // base64 PNG
}

// buildPayCard renders the payment request for address, letting query
// parameters override the configured amount, label and message.
func buildPayCard(address solana.PublicKey, defaults view.PayLink, query url.Values, withQR bool) (PayCard, error) {
	link := defaults
	if raw := query.Get("amount"); raw != "" {
		amount, err := tipjar.ParseSOL(raw)
		if err != nil {
			return PayCard{}, errorf("invalid amount: %v", err)
		}
		link.SuggestedTip = amount
	}
	if query.Has("label") {
		link.Label = query.Get("label")
	}
	if query.Has("message") {
		link.Message = query.Get("message")
	}

	uri := tipjar.BuildScanURI(address, link.SuggestedTip, link.Label, link.Message)
	card := PayCard{
		Address:    address.String(),
		Amount:     link.SuggestedTip,
		AmountSOL:  tipjar.FormatSOLExact(link.SuggestedTip),
		Label:      link.Label,
		Message:    link.Message,
		PaymentURL: uri,
	}
	if withQR {
		png, err := tipjar.QRCodePNG(uri, defaultQRSize)
		if err != nil {
			return PayCard{}, fmt.Errorf("failed to render QR code: %w", err)
		}
		card.QRCodeData = base64.StdEncoding.EncodeToString(png)
	}
	return card, nil
}

// parseQRSize reads the size query parameter, clamped to a sane range.
func parseQRSize(raw string) (int, error) {
	if raw == "" {
		return defaultQRSize, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errorf("invalid size %q: must be an integer", raw)
	}
	if size < minQRSize || size > maxQRSize {
		return 0, errorf("invalid size %d: must be between %d and %d", size, minQRSize, maxQRSize)
	}
	return size, nil
}
