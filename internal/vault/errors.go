package vault

import "fmt"

type ErrorCode uint32

const (
	CodeUnauthorized ErrorCode = iota
	CodeBridgePaused
	CodeInvalidNonce
	CodeThresholdNotMet
	CodeAlreadyInitialized
	CodeOverflow
	CodeIncorrectOwner
	CodeAccountNotWritable
	CodeMissingRequiredSignature
	CodeInvalidFee
	CodeInvalidStatus
	CodeInsufficientFunds
	CodeInvalidDestination
	CodeInvalidPDA
	CodeAlreadyUnlocked

	// not custom program errors on chain, kept apart from the numbered codes
	CodeInvalidArgument        ErrorCode = 100
	CodeInvalidInstructionData ErrorCode = 101
)

var codeNames = map[ErrorCode]string{
	CodeUnauthorized:             "Unauthorized",
	CodeBridgePaused:             "BridgePaused",
	CodeInvalidNonce:             "InvalidNonce",
	CodeThresholdNotMet:          "ThresholdNotMet",
	CodeAlreadyInitialized:       "AlreadyInitialized",
	CodeOverflow:                 "Overflow",
	CodeIncorrectOwner:           "IncorrectOwner",
	CodeAccountNotWritable:       "AccountNotWritable",
	CodeMissingRequiredSignature: "MissingRequiredSignature",
	CodeInvalidFee:               "InvalidFee",
	CodeInvalidStatus:            "InvalidStatus",
	CodeInsufficientFunds:        "InsufficientFunds",
	CodeInvalidDestination:       "InvalidDestination",
	CodeInvalidPDA:               "InvalidPDA",
	CodeAlreadyUnlocked:          "AlreadyUnlocked",
	CodeInvalidArgument:          "InvalidArgument",
	CodeInvalidInstructionData:   "InvalidInstructionData",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(c))
}

// ErrorKind groups custody failures by cause
type ErrorKind string

const (
	KindAuthorization ErrorKind = "AuthorizationError"
	KindValidation    ErrorKind = "ValidationError"
	KindReplay        ErrorKind = "ReplayError"
	KindConsensus     ErrorKind = "ConsensusError"
	KindArithmetic    ErrorKind = "ArithmeticError"
	KindStorage       ErrorKind = "StorageError"
)

// CustodyError is returned by every failed instruction, the store is untouched when it is
type CustodyError struct {
	Code   ErrorCode
	Detail string
}

func (e *CustodyError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("custody error %d: %s", uint32(e.Code), e.Code)
	}
	return fmt.Sprintf("custody error %d: %s: %s", uint32(e.Code), e.Code, e.Detail)
}

// Is matches on code only, so errors.Is(err, ErrBridgePaused) ignores Detail
func (e *CustodyError) Is(target error) bool {
	t, ok := target.(*CustodyError)
	return ok && t.Code == e.Code
}

func (e *CustodyError) Kind() ErrorKind {
	switch e.Code {
	case CodeUnauthorized, CodeMissingRequiredSignature:
		return KindAuthorization
	case CodeInvalidNonce, CodeAlreadyUnlocked, CodeInvalidStatus, CodeAlreadyInitialized:
		return KindReplay
	case CodeThresholdNotMet:
		return KindConsensus
	case CodeOverflow:
		return KindArithmetic
	case CodeIncorrectOwner, CodeAccountNotWritable, CodeInvalidPDA:
		return KindStorage
	default:
		return KindValidation
	}
}

func newError(code ErrorCode, format string, args ...interface{}) *CustodyError {
	return &CustodyError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

var (
	ErrUnauthorized             = &CustodyError{Code: CodeUnauthorized}
	ErrBridgePaused             = &CustodyError{Code: CodeBridgePaused}
	ErrInvalidNonce             = &CustodyError{Code: CodeInvalidNonce}
	ErrThresholdNotMet          = &CustodyError{Code: CodeThresholdNotMet}
	ErrAlreadyInitialized       = &CustodyError{Code: CodeAlreadyInitialized}
	ErrOverflow                 = &CustodyError{Code: CodeOverflow}
	ErrIncorrectOwner           = &CustodyError{Code: CodeIncorrectOwner}
	ErrAccountNotWritable       = &CustodyError{Code: CodeAccountNotWritable}
	ErrMissingRequiredSignature = &CustodyError{Code: CodeMissingRequiredSignature}
	ErrInvalidFee               = &CustodyError{Code: CodeInvalidFee}
	ErrInvalidStatus            = &CustodyError{Code: CodeInvalidStatus}
	ErrInsufficientFunds        = &CustodyError{Code: CodeInsufficientFunds}
	ErrInvalidDestination       = &CustodyError{Code: CodeInvalidDestination}
	ErrInvalidPDA               = &CustodyError{Code: CodeInvalidPDA}
	ErrAlreadyUnlocked          = &CustodyError{Code: CodeAlreadyUnlocked}
	ErrInvalidArgument          = &CustodyError{Code: CodeInvalidArgument}
	ErrInvalidInstructionData   = &CustodyError{Code: CodeInvalidInstructionData}
)
