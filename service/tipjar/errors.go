package tipjar

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	// ErrAccountNotFound means the tip jar has not been initialized or its data
	// could not be decoded. Readers show "no data yet" rather than an error.
	ErrAccountNotFound = errors.New("tip jar account not found")

	ErrInvalidAmount         = errors.New("amount must be greater than 0")
	ErrInsufficientFunds     = errors.New("insufficient funds in tipjar")
	ErrNotOwner              = errors.New("only the tip jar owner can withdraw")
	ErrAccountNotInitialized = errors.New("tip jar account is not initialized")

	// ErrSubmission wraps every failure after a transaction was built.
	ErrSubmission = errors.New("transaction submission failed")
)

// Program and Anchor framework error codes.
const (
	CodeInvalidAmount         uint32 = 6000
	CodeInsufficientFunds     uint32 = 6001
	CodeConstraintHasOne      uint32 = 2001
	CodeAccountNotInitialized uint32 = 3012
)

var codeSentinels = map[uint32]error{
	CodeInvalidAmount:         ErrInvalidAmount,
	CodeInsufficientFunds:     ErrInsufficientFunds,
	CodeConstraintHasOne:      ErrNotOwner,
	CodeAccountNotInitialized: ErrAccountNotInitialized,
}

// ProgramError is a rejection reported by an on-chain program.
// It matches ErrSubmission, the sentinel for its code and Cause.
// Codes outside the tip jar taxonomy, such as the System Program's
// insufficient lamports (1), keep the RPC's own message.
type ProgramError struct {
	Code    uint32
	Message string
	Cause   error
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("program error %d: %s", e.Code, e.Message)
}

func (e *ProgramError) Unwrap() []error {
	errs := []error{ErrSubmission}
	if sentinel, ok := codeSentinels[e.Code]; ok {
		errs = append(errs, sentinel)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func newProgramError(code uint32, cause error) *ProgramError {
	perr := &ProgramError{Code: code, Message: "unknown program error", Cause: cause}
	if sentinel, ok := codeSentinels[code]; ok {
		perr.Message = sentinel.Error()
	} else if cause != nil {
		perr.Message = cause.Error()
	}
	return perr
}

var (
	customErrorHex    = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)
	anchorErrorNumber = regexp.MustCompile(`Error Number: (\d+)`)
)

// ClassifyError maps an RPC send error to the submission taxonomy.
// Preflight failures embed the program's custom error code in their message.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var perr *ProgramError
	if errors.As(err, &perr) {
		return err
	}

	msg := err.Error()
	if m := customErrorHex.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.ParseUint(m[1], 16, 32); convErr == nil {
			return newProgramError(uint32(code), err)
		}
	}
	if m := anchorErrorNumber.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.ParseUint(m[1], 10, 32); convErr == nil {
			return newProgramError(uint32(code), err)
		}
	}
	return fmt.Errorf("%w: %w", ErrSubmission, err)
}

// ErrorFromStatus converts the err field of a signature status, e.g.
// {"InstructionError":[0,{"Custom":6000}]}, into the submission taxonomy.
func ErrorFromStatus(statusErr interface{}) error {
	if statusErr == nil {
		return nil
	}
	raw, _ := json.Marshal(statusErr)
	if code, ok := customCode(statusErr); ok {
		return newProgramError(code, fmt.Errorf("transaction failed: %s", raw))
	}
	return fmt.Errorf("%w: transaction failed: %s", ErrSubmission, string(raw))
}

func customCode(statusErr interface{}) (uint32, bool) {
	m, ok := statusErr.(map[string]interface{})
	if !ok {
		return 0, false
	}
	ie, ok := m["InstructionError"].([]interface{})
	if !ok || len(ie) != 2 {
		return 0, false
	}
	detail, ok := ie[1].(map[string]interface{})
	if !ok {
		return 0, false
	}
	switch v := detail["Custom"].(type) {
	case float64:
		return uint32(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return uint32(n), true
	case int:
		return uint32(v), true
	case uint32:
		return v, true
	}
	return 0, false
}
