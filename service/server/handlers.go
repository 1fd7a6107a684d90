package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brojonat/tipjar/service/solana"
	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/brojonat/tipjar/service/view"
	"github.com/brojonat/tipjar/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
)

const maxRequestBodySize = 1 << 16

// TipJar is the controller surface the HTTP layer drives.
type TipJar interface {
	View() view.View
	Refresh(ctx context.Context, trigger string) error
	Connect(ctx context.Context) (view.View, error)
	Disconnect(ctx context.Context) view.View
	SendTip(ctx context.Context, amount string) (*solana.Receipt, error)
	Withdraw(ctx context.Context, amount string) (*solana.Receipt, error)
	WithdrawAll(ctx context.Context) (*solana.Receipt, error)
	Address() solanago.PublicKey
	PayLink() view.PayLink
}

// handleGetTipJar returns the current view.
// GET /api/v1/tipjar?refresh=true
func handleGetTipJar(tj TipJar, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("refresh") == "true" {
			// A failed read is reported in the view's read_error field.
			_ = tj.Refresh(r.Context(), view.TriggerManual)
		}
		writeJSON(w, tj.View(), http.StatusOK)
	})
}

type amountRequest struct {
	Amount string `json:"amount"` // SOL decimal, e.g. "0.1"
	All    bool   `json:"all,omitempty"`
}

type submissionResponse struct {
	Receipt *solana.Receipt `json:"receipt"`
	View    view.View       `json:"view"`
}

// handleSendTip tips from the connected wallet.
// POST /api/v1/tips {"amount": "0.1"}
func handleSendTip(tj TipJar, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeAmountRequest(w, r)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		receipt, err := tj.SendTip(r.Context(), req.Amount)
		if err != nil {
			logSubmissionError(r.Context(), logger, "tip", err)
			writeError(w, err.Error(), errorStatus(err))
			return
		}

		logger.InfoContext(r.Context(), "tip confirmed",
			"signature", receipt.Signature.String(),
			"amount", receipt.Amount,
		)
		writeJSON(w, submissionResponse{Receipt: receipt, View: tj.View()}, http.StatusCreated)
	})
}

// handleWithdraw withdraws to the connected owner.
// POST /api/v1/withdrawals {"amount": "0.5"} or {"all": true}
func handleWithdraw(tj TipJar, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeAmountRequest(w, r)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		var receipt *solana.Receipt
		if req.All {
			receipt, err = tj.WithdrawAll(r.Context())
		} else {
			receipt, err = tj.Withdraw(r.Context(), req.Amount)
		}
		if err != nil {
			logSubmissionError(r.Context(), logger, "withdraw", err)
			writeError(w, err.Error(), errorStatus(err))
			return
		}

		logger.InfoContext(r.Context(), "withdrawal confirmed",
			"signature", receipt.Signature.String(),
			"amount", receipt.Amount,
		)
		writeJSON(w, submissionResponse{Receipt: receipt, View: tj.View()}, http.StatusCreated)
	})
}

// handleConnect connects the server wallet.
// POST /api/v1/wallet/connect
func handleConnect(tj TipJar, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, err := tj.Connect(r.Context())
		if err != nil {
			logger.WarnContext(r.Context(), "wallet connect failed", "error", err)
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, v, http.StatusOK)
	})
}

// handleDisconnect disconnects the server wallet.
// POST /api/v1/wallet/disconnect
func handleDisconnect(tj TipJar) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, tj.Disconnect(r.Context()), http.StatusOK)
	})
}

// handleGetPayURI returns the scan card payment request.
// GET /api/v1/pay-uri?amount=0.25&label=...&message=...&qr=true
func handleGetPayURI(tj TipJar, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		card, err := buildPayCard(tj.Address(), tj.PayLink(), query, query.Get("qr") == "true")
		if err != nil {
			var verr *validationError
			if errors.As(err, &verr) {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.ErrorContext(r.Context(), "failed to build pay card", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, card, http.StatusOK)
	})
}

// handleQRCode renders the scan card URI as a PNG.
// GET /qr.png?size=280&amount=0.1
func handleQRCode(tj TipJar, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		size, err := parseQRSize(query.Get("size"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		card, err := buildPayCard(tj.Address(), tj.PayLink(), query, false)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		png, err := tipjar.QRCodePNG(card.PaymentURL, size)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to render QR code", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	})
}

func decodeAmountRequest(w http.ResponseWriter, r *http.Request) (amountRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if strings.Contains(err.Error(), "http: request body too large") {
			return req, errorf("request body too large")
		}
		return req, errorf("invalid request body: must be valid JSON")
	}
	return req, nil
}

// errorStatus maps the submission error taxonomy to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case view.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, tipjar.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, wallet.ErrNotConnected), errors.Is(err, view.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, tipjar.ErrInvalidAmount),
		errors.Is(err, tipjar.ErrInsufficientFunds),
		errors.Is(err, tipjar.ErrAccountNotInitialized),
		errors.As(err, new(*tipjar.ProgramError)):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, tipjar.ErrSubmission):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func logSubmissionError(ctx context.Context, logger *slog.Logger, action string, err error) {
	if view.IsValidation(err) {
		logger.DebugContext(ctx, "rejected invalid input", "action", action, "error", err)
		return
	}
	logger.WarnContext(ctx, "submission failed", "action", action, "error", err)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func errorf(format string, args ...interface{}) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
