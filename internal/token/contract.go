/*

Untrusted fungible-token surface. Every implementation of Contract is assumed
hostile: Transfer and TransferFrom may synchronously call back into the engine
before returning, and Symbol/Decimals may be absent or fail for malformed tokens.

Callers must follow the engine-wide ordering discipline: commit ledger state
before invoking Transfer/TransferFrom, and only probe metadata through TrySymbol
and TryDecimals, which never propagate failure.

*/

package token

import (
	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/gpm/internal/types"
)

// Contract abstracts calls into a fungible-token contract.
type Contract interface {
	// Address returns the token's identity.
	Address() types.Address

	// Transfer pushes amount from the engine's custody to the recipient.
	// May synchronously re-enter the engine.
	Transfer(to types.Address, amount sdkmath.Int) error

	// TransferFrom pulls amount from the payer into the recipient, relying on a
	// prior approval. May synchronously re-enter the engine.
	TransferFrom(from, to types.Address, amount sdkmath.Int) error

	// Symbol returns the token's display symbol. Optional; may fail.
	Symbol() (string, error)

	// Decimals returns the token's display precision. Optional; may fail.
	Decimals() (uint8, error)
}

const (
	// SymbolSentinel is substituted when a token's symbol probe fails, so one
	// malformed token cannot stall a batch read.
	SymbolSentinel = "ERR"

	// DecimalsSentinel is substituted when a token's decimals probe fails.
	DecimalsSentinel = uint8(0)
)

// TrySymbol probes the token's symbol, substituting the sentinel on any failure.
// Never returns an error.
func TrySymbol(c Contract) string {
	if c == nil {
		return SymbolSentinel
	}
	sym, err := c.Symbol()
	if err != nil || sym == "" {
		return SymbolSentinel
	}
	return sym
}

// TryDecimals probes the token's decimals, substituting the sentinel on any
// failure. Never returns an error.
func TryDecimals(c Contract) uint8 {
	if c == nil {
		return DecimalsSentinel
	}
	dec, err := c.Decimals()
	if err != nil {
		return DecimalsSentinel
	}
	return dec
}
