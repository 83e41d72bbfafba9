/*

In-memory fungible token used by the simulation wiring and the test suites. The
hooks model the adversarial behavior the engine has to withstand: a transfer that
synchronously re-enters the caller, a transfer that fails partway through a
batch, a metadata probe that reverts.

*/

package token

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/gpm/internal/types"
)

// ErrInsufficientBalance is returned by SimContract when the payer's balance
// does not cover the transfer.
var ErrInsufficientBalance = errors.New("insufficient balance")

// SimContract is an in-memory Contract implementation with an explicit balance
// ledger.
type SimContract struct {
	addr     types.Address
	symbol   string
	decimals uint8
	balances map[types.Address]sdkmath.Int

	// OnTransfer, when set, runs after the balance movement of every
	// Transfer/TransferFrom and before the call returns - the point at which a
	// hostile token re-enters the engine.
	OnTransfer func(from, to types.Address, amount sdkmath.Int)

	// FailTransfers forces every Transfer/TransferFrom to fail without moving
	// balances.
	FailTransfers bool

	// FailMetadata forces Symbol and Decimals to fail.
	FailMetadata bool
}

// NewSim creates a simulated token.
func NewSim(addr types.Address, symbol string, decimals uint8) *SimContract {
	return &SimContract{
		addr:     addr,
		symbol:   symbol,
		decimals: decimals,
		balances: make(map[types.Address]sdkmath.Int),
	}
}

func (s *SimContract) Address() types.Address {
	return s.addr
}

// Mint credits an account out of thin air. Test/simulation setup only.
func (s *SimContract) Mint(to types.Address, amount sdkmath.Int) {
	s.balances[to] = s.BalanceOf(to).Add(amount)
}

// BalanceOf returns the account's balance, zero for unknown accounts.
func (s *SimContract) BalanceOf(acct types.Address) sdkmath.Int {
	if bal, ok := s.balances[acct]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

func (s *SimContract) move(from, to types.Address, amount sdkmath.Int) error {
	if s.FailTransfers {
		return fmt.Errorf("%s: transfer reverted", s.addr)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%s: negative amount", s.addr)
	}
	bal := s.BalanceOf(from)
	if bal.LT(amount) {
		return fmt.Errorf("%s: %w", s.addr, ErrInsufficientBalance)
	}
	s.balances[from] = bal.Sub(amount)
	s.balances[to] = s.BalanceOf(to).Add(amount)

	if s.OnTransfer != nil {
		s.OnTransfer(from, to, amount)
	}
	return nil
}

func (s *SimContract) Transfer(to types.Address, amount sdkmath.Int) error {
	return s.move(s.custodian(), to, amount)
}

func (s *SimContract) TransferFrom(from, to types.Address, amount sdkmath.Int) error {
	return s.move(from, to, amount)
}

func (s *SimContract) Symbol() (string, error) {
	if s.FailMetadata {
		return "", fmt.Errorf("%s: symbol reverted", s.addr)
	}
	return s.symbol, nil
}

func (s *SimContract) Decimals() (uint8, error) {
	if s.FailMetadata {
		return 0, fmt.Errorf("%s: decimals reverted", s.addr)
	}
	return s.decimals, nil
}

// custodian is the implicit sender for push transfers: the engine's custody
// account. Simulations fund it via Mint.
func (s *SimContract) custodian() types.Address {
	return Custodian
}

// Custodian is the engine's custody account in simulations.
const Custodian = types.Address("gpm-custody")
