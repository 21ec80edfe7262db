package domain

import "errors"

var (
	// ErrBatchMismatch means a user's cancel and place batches diverged in
	// length. The batches grow together by construction, so this firing
	// indicates a logic regression; the user's cycle aborts untouched.
	ErrBatchMismatch = errors.New("cancel and place batches out of step")

	// ErrNoLiquidity is returned by market data when the needed book side
	// is empty.
	ErrNoLiquidity = errors.New("no liquidity on book side")

	// ErrOrderNotFound is returned by lookups for an unknown order id.
	ErrOrderNotFound = errors.New("order not found")
)
