/*

Error taxonomy for the engine. Every failure surfaced by a mutating operation is
classified into one of these sentinels so callers can distinguish "caller bug"
(InvalidState, Unauthorized, ZeroAddress) from "hostile environment"
(Reentrancy, ExternalCall) from "guarded arithmetic" (ArithmeticBounds).

*/

package types

import (
	"errors"
)

var (
	// ErrInvalidState is returned when an operation is not permitted from the
	// pool's current lifecycle status. Not retryable.
	ErrInvalidState = errors.New("operation not permitted in current state")

	// ErrUnauthorized is returned when the caller lacks the capability the
	// operation requires. Not retryable.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrReentrancy is returned when a mutating call targets an entity whose
	// lock is already held by an enclosing call. A hard failure, never queued.
	ErrReentrancy = errors.New("reentrant call rejected")

	// ErrExternalCall is returned when an outbound transfer or collaborator call
	// failed. The enclosing operation aborts as a whole; staged ledger mutations
	// are restored before the error surfaces.
	ErrExternalCall = errors.New("external call failed")

	// ErrArithmeticBounds is returned when an input would overflow a bounded
	// computation or force a division by zero. Guards are proactive; the engine
	// never relies on wraparound.
	ErrArithmeticBounds = errors.New("arithmetic bounds exceeded")

	// ErrZeroAddress is returned when a fund-custody or access-control address
	// is unset at first write.
	ErrZeroAddress = errors.New("zero address")

	// ErrMissingDependency is returned when a required collaborator was not
	// wired in.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrPoolNotFound is returned when the referenced pool does not exist.
	ErrPoolNotFound = errors.New("pool not found")
)
