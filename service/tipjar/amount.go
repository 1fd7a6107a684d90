package tipjar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
)

const lamportDecimals = 9

// ParseSOL converts a decimal SOL string such as "0.5" into lamports.
// Non-numeric, zero, negative and sub-lamport inputs are rejected with an
// error wrapping ErrInvalidAmount.
func ParseSOL(input string) (uint64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, input)
	}
	s = strings.TrimPrefix(s, "+")

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, input)
	}
	if hasDot && strings.Contains(frac, ".") {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, input)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, input)
	}
	if len(frac) > lamportDecimals {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, input, lamportDecimals)
	}

	var wholeLamports uint64
	if whole != "" {
		w, err := strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, input)
		}
		if w > (^uint64(0))/solana.LAMPORTS_PER_SOL {
			return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, input)
		}
		wholeLamports = w * solana.LAMPORTS_PER_SOL
	}

	var fracLamports uint64
	if frac != "" {
		padded := frac + strings.Repeat("0", lamportDecimals-len(frac))
		f, err := strconv.ParseUint(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, input)
		}
		fracLamports = f
	}

	total := wholeLamports + fracLamports
	if total < wholeLamports {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, input)
	}
	if total == 0 {
		return 0, fmt.Errorf("%w: %q is zero", ErrInvalidAmount, input)
	}
	return total, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatSOL renders lamports with four decimals, the precision shown on the page.
func FormatSOL(lamports uint64) string {
	return fmt.Sprintf("%.4f", float64(lamports)/float64(solana.LAMPORTS_PER_SOL))
}

// FormatSOLExact renders lamports as a SOL decimal without trailing zeros.
func FormatSOLExact(lamports uint64) string {
	whole := lamports / solana.LAMPORTS_PER_SOL
	frac := lamports % solana.LAMPORTS_PER_SOL
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fracStr := fmt.Sprintf("%09d", frac)
	return strconv.FormatUint(whole, 10) + "." + strings.TrimRight(fracStr, "0")
}
