package repo

import "errors"

// ErrDuplicateTransaction is returned when a recharge request reuses an
// external transaction id that is already on record. Surfaced to clients as
// a conflict, not a server failure.
var ErrDuplicateTransaction = errors.New("transaction id already used")

// ErrAlreadyProcessed is returned when an approve/reject loses the
// conditional status transition: the request left pending before this call
// got to it.
var ErrAlreadyProcessed = errors.New("request already processed")

// ErrRequestNotFound is returned for an unknown recharge request id.
var ErrRequestNotFound = errors.New("recharge request not found")
