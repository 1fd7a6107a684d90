package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/brojonat/tipjar/service/nats"
	"github.com/brojonat/tipjar/service/solana"
	"github.com/brojonat/tipjar/service/tipjar"
	solanago "github.com/gagliardetto/solana-go"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printReceipt(w io.Writer, r *solana.Receipt, jsonOutput bool) error {
	if jsonOutput {
		return printJSON(w, r)
	}
	fmt.Fprintf(w, "✓ %s confirmed\n", r.Instruction)
	fmt.Fprintf(w, "  Signature: %s\n", r.Signature)
	fmt.Fprintf(w, "  Payer:     %s\n", r.Payer)
	if r.Instruction != tipjar.InstructionInitialize {
		fmt.Fprintf(w, "  Amount:    %s SOL\n", tipjar.FormatSOLExact(r.Amount))
	}
	fmt.Fprintf(w, "  Slot:      %d\n", r.Slot)
	fmt.Fprintf(w, "  Status:    %s\n", r.Status)
	return nil
}

func printEvent(w io.Writer, e *nats.Event, jsonOutput bool) error {
	if jsonOutput {
		return printJSON(w, e)
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Kind:       %s\n", e.Kind)
	fmt.Fprintf(w, "Tip jar:    %s\n", e.TipJar)
	fmt.Fprintf(w, "Actor:      %s\n", e.Actor)
	fmt.Fprintf(w, "Amount:     %s SOL\n", tipjar.FormatSOLExact(e.Amount))
	fmt.Fprintf(w, "Signature:  %s\n", e.Signature)
	fmt.Fprintf(w, "Slot:       %d\n", e.Slot)
	if !e.OccurredAt.IsZero() {
		fmt.Fprintf(w, "Occurred:   %s\n", e.OccurredAt.Format(time.RFC3339))
	}
	return nil
}

func parsePublicKey(s string) (solanago.PublicKey, error) {
	pk, err := solanago.PublicKeyFromBase58(s)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return pk, nil
}
