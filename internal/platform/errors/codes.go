// Package errors provides structured error handling for catbox services.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Box errors
	CodeBoxEmptyAccount    Code = "BOX_EMPTY_ACCOUNT"
	CodeBoxDepositTooSmall Code = "BOX_DEPOSIT_TOO_SMALL"
	CodeBoxAlreadyExists   Code = "BOX_ALREADY_EXISTS"
	CodeBoxNotAlive        Code = "BOX_NOT_ALIVE"
	CodeBoxExpired         Code = "BOX_EXPIRED"
	CodeBoxNotExpired      Code = "BOX_NOT_EXPIRED"

	// Ledger errors
	CodeLedgerNoPlayers Code = "LEDGER_NO_PLAYERS"

	// Funds errors
	CodePoolInsufficientFunds Code = "POOL_INSUFFICIENT_FUNDS"
	CodeBankTransferFailed    Code = "BANK_TRANSFER_FAILED"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeStorageFailed Code = "STORAGE_FAILED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeBoxEmptyAccount,
		CodeBoxDepositTooSmall:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeBoxNotAlive,
		CodeBoxExpired,
		CodeBoxNotExpired,
		CodeLedgerNoPlayers:
		return codes.FailedPrecondition

	// ResourceExhausted - funds checks; retryable once the pool refills
	case CodePoolInsufficientFunds:
		return codes.ResourceExhausted

	// Unavailable - the funds collaborator rejected the transfer
	case CodeBankTransferFailed:
		return codes.Unavailable

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeBoxAlreadyExists:
		return codes.AlreadyExists

	// Internal - persistence failures
	case CodeStorageFailed:
		return codes.Internal

	default:
		return codes.Internal
	}
}
