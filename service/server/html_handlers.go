package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/brojonat/tipjar/service/solana"
	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/brojonat/tipjar/service/view"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer holds parsed HTML templates
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer creates a new template renderer from embedded files
func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"shortSig": shortSignature,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Render renders a template with the given data
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tr.templates.ExecuteTemplate(w, name, data)
}

type indexPage struct {
	View      view.View
	Flash     string
	FlashErr  bool
	Signature string
	Events    bool
}

// handleIndex renders the tip jar page for the current view.
// Flash messages from form posts arrive as query parameters.
func handleIndex(tj TipJar, renderer *TemplateRenderer, eventsEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		page := indexPage{
			View:      tj.View(),
			Flash:     query.Get("flash"),
			FlashErr:  query.Get("status") == "error",
			Signature: query.Get("sig"),
			Events:    eventsEnabled,
		}
		if err := renderer.Render(w, "index.html", page); err != nil {
			renderer.logger.Error("failed to render template", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// handleTipForm handles the tip form post and redirects back to the page.
// POST /tip amount=0.1
func handleTipForm(tj TipJar, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		receipt, err := tj.SendTip(r.Context(), r.FormValue("amount"))
		if err != nil {
			logSubmissionError(r.Context(), logger, "tip", err)
			redirectWithFlash(w, r, "Tip failed: "+err.Error(), nil)
			return
		}
		redirectWithFlash(w, r, "Thanks! Tip of "+tipjar.FormatSOLExact(receipt.Amount)+" SOL sent.", receipt)
	}
}

// handleWithdrawForm handles the owner's withdraw form post.
// POST /withdraw amount=0.5 or all=true
func handleWithdrawForm(tj TipJar, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			receipt *solana.Receipt
			err     error
		)
		if r.FormValue("all") == "true" {
			receipt, err = tj.WithdrawAll(r.Context())
		} else {
			receipt, err = tj.Withdraw(r.Context(), r.FormValue("amount"))
		}
		if err != nil {
			logSubmissionError(r.Context(), logger, "withdraw", err)
			redirectWithFlash(w, r, "Withdrawal failed: "+err.Error(), nil)
			return
		}
		redirectWithFlash(w, r, "Withdrew "+tipjar.FormatSOLExact(receipt.Amount)+" SOL.", receipt)
	}
}

// handleConnectForm connects the wallet from the page.
func handleConnectForm(tj TipJar, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := tj.Connect(r.Context()); err != nil {
			logger.WarnContext(r.Context(), "wallet connect failed", "error", err)
			redirectWithFlash(w, r, "Could not connect wallet: "+err.Error(), nil)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// handleDisconnectForm disconnects the wallet from the page.
func handleDisconnectForm(tj TipJar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tj.Disconnect(r.Context())
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// redirectWithFlash sends the browser back to the page with a message.
// A nil receipt marks the message as an error.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, msg string, receipt *solana.Receipt) {
	q := url.Values{}
	q.Set("flash", msg)
	if receipt == nil {
		q.Set("status", "error")
	} else {
		q.Set("status", "ok")
		q.Set("sig", receipt.Signature.String())
	}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

func shortSignature(sig string) string {
	if len(sig) <= 16 {
		return sig
	}
	return sig[:8] + "…" + sig[len(sig)-8:]
}

// handleFavicon serves a small SVG jar icon.
func handleFavicon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 32 32"><rect x="7" y="8" width="18" height="20" rx="4" fill="#14f195"/><rect x="9" y="4" width="14" height="5" rx="2" fill="#9945ff"/></svg>`))
	}
}
