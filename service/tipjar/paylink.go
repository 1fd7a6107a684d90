package tipjar

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/skip2/go-qrcode"
)

// Solana Pay transfer request defaults shown on the scan card.
const (
	DefaultPayLabel   = "Tip Jar"
	DefaultPayMessage = "Thank you for the tip!"
)

// DefaultSuggestedTip is 0.1 SOL.
const DefaultSuggestedTip uint64 = solana.LAMPORTS_PER_SOL / 10

// QuickTipPresets are the one-click tip amounts offered next to the form.
var QuickTipPresets = []uint64{
	solana.LAMPORTS_PER_SOL / 20,
	solana.LAMPORTS_PER_SOL / 10,
	solana.LAMPORTS_PER_SOL / 2,
}

const payScheme = "solana"

// PaymentRequest is the decoded content of a Solana Pay transfer URI.
type PaymentRequest struct {
	Recipient solana.PublicKey `json:"recipient"`
	Amount    uint64           `json:"amount"` // lamports, 0 when unspecified
	Label     string           `json:"label,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// BuildScanURI formats a Solana Pay transfer request that wallet apps can scan:
// solana:<address>?amount=<SOL>&label=<label>&message=<message>
// Parameters are emitted in that order and empty ones are omitted.
func BuildScanURI(address solana.PublicKey, suggestedAmount uint64, label, message string) string {
	var params []string
	if suggestedAmount > 0 {
		params = append(params, "amount="+FormatSOLExact(suggestedAmount))
	}
	if label != "" {
		params = append(params, "label="+escapeQuery(label))
	}
	if message != "" {
		params = append(params, "message="+escapeQuery(message))
	}

	uri := payScheme + ":" + address.String()
	if len(params) > 0 {
		uri += "?" + strings.Join(params, "&")
	}
	return uri
}

// escapeQuery escapes spaces as %20 rather than '+', which some wallets
// display literally.
func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// ParseScanURI decodes a URI produced by BuildScanURI.
func ParseScanURI(uri string) (PaymentRequest, error) {
	rest, ok := strings.CutPrefix(uri, payScheme+":")
	if !ok {
		return PaymentRequest{}, fmt.Errorf("not a solana pay uri: %q", uri)
	}
	recipient, rawQuery, _ := strings.Cut(rest, "?")

	pk, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return PaymentRequest{}, fmt.Errorf("invalid recipient %q: %w", recipient, err)
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return PaymentRequest{}, fmt.Errorf("invalid query: %w", err)
	}

	req := PaymentRequest{
		Recipient: pk,
		Label:     query.Get("label"),
		Message:   query.Get("message"),
	}
	if amount := query.Get("amount"); amount != "" {
		req.Amount, err = ParseSOL(amount)
		if err != nil {
			return PaymentRequest{}, fmt.Errorf("invalid amount: %w", err)
		}
	}
	return req, nil
}

// QRCodePNG renders uri as a PNG QR code of size x size pixels with the
// highest error correction level.
func QRCodePNG(uri string, size int) ([]byte, error) {
	qr, err := qrcode.New(uri, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code as PNG: %w", err)
	}
	return png, nil
}
