package genesis

import (
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dex/gpm/internal/token"
	"github.com/meridian-dex/gpm/internal/types"
)

var (
	owner     = types.Address("owner")
	alice     = types.Address("alice")
	bob       = types.Address("bob")
	connector = types.Address("0xconnector")
)

// fakeRouter returns the desired amounts and a fixed liquidity figure. The
// hook runs inside AddLiquidity so tests can re-enter the engine mid-launch.
type fakeRouter struct {
	fail      bool
	liquidity int64
	hook      func()
	calls     int
}

func (r *fakeRouter) AddLiquidity(
	nativeToken, fundingToken types.Address,
	stable bool,
	amountNativeDesired, amountFundingDesired sdkmath.Int,
	amountNativeMin, amountFundingMin sdkmath.Int,
	to types.Address,
	deadline time.Time,
) (sdkmath.Int, sdkmath.Int, sdkmath.Int, error) {
	r.calls++
	if r.hook != nil {
		r.hook()
	}
	if r.fail {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), errors.New("router reverted")
	}
	return amountNativeDesired, amountFundingDesired, sdkmath.NewInt(r.liquidity), nil
}

type fixture struct {
	mgr     *Manager
	router  *fakeRouter
	native  *token.SimContract
	funding *token.SimContract
	id      types.PoolID
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	router := &fakeRouter{liquidity: 42}
	mgr, err := NewManager(Config{
		Router:          router,
		Treasury:        token.Custodian,
		DepositWindow:   7 * 24 * time.Hour,
		ConnectorTokens: []types.Address{connector},
	})
	require.NoError(t, err)

	native := token.NewSim(types.Address("0xnative"), "NTV", 18)
	funding := token.NewSim(types.Address("0xusdc"), "USDC", 6)
	native.Mint(owner, sdkmath.NewInt(1_000_000))
	funding.Mint(alice, sdkmath.NewInt(1_000_000))
	funding.Mint(bob, sdkmath.NewInt(1_000_000))

	id, err := mgr.CreatePool(types.GenesisInfo{
		NativeToken:          native.Address(),
		FundingToken:         funding.Address(),
		TokenOwner:           owner,
		ProposedNativeAmount: sdkmath.NewInt(1000),
	}, native, funding)
	require.NoError(t, err)

	return &fixture{
		mgr:     mgr,
		router:  router,
		native:  native,
		funding: funding,
		id:      id,
		now:     time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
	}
}

// open moves the pool through native deposit and into an elapsed PreLaunch
// window with the given public deposits collected, ready to launch.
func (f *fixture) open(t *testing.T, deposits map[types.Address]int64) {
	t.Helper()
	require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
	require.NoError(t, f.mgr.MarkPreLaunch(f.id, f.now))
	for account, amount := range deposits {
		require.NoError(t, f.mgr.Deposit(f.id, account, sdkmath.NewInt(amount)))
	}
	f.now = f.now.Add(8 * 24 * time.Hour)
	require.NoError(t, f.mgr.DisableDeposits(f.id, f.now))
}

func (f *fixture) pool(t *testing.T) *Pool {
	t.Helper()
	p, err := f.mgr.Pool(f.id)
	require.NoError(t, err)
	return p
}

func TestCreatePoolValidation(t *testing.T) {
	f := newFixture(t)
	info := types.GenesisInfo{
		NativeToken:          f.native.Address(),
		FundingToken:         f.funding.Address(),
		TokenOwner:           owner,
		ProposedNativeAmount: sdkmath.NewInt(1000),
	}

	bad := info
	bad.TokenOwner = types.Address("")
	_, err := f.mgr.CreatePool(bad, f.native, f.funding)
	assert.ErrorIs(t, err, types.ErrZeroAddress)

	bad = info
	bad.FundingToken = info.NativeToken
	_, err = f.mgr.CreatePool(bad, f.native, f.native)
	assert.ErrorIs(t, err, types.ErrInvalidState)

	bad = info
	bad.ProposedNativeAmount = sdkmath.ZeroInt()
	_, err = f.mgr.CreatePool(bad, f.native, f.funding)
	assert.ErrorIs(t, err, types.ErrArithmeticBounds)

	_, err = f.mgr.CreatePool(info, nil, f.funding)
	assert.ErrorIs(t, err, types.ErrMissingDependency)
}

func TestNativeDepositMovesStatusAndFunds(t *testing.T) {
	f := newFixture(t)

	err := f.mgr.DepositNativeToken(f.id, alice)
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
	p := f.pool(t)
	assert.Equal(t, types.NativeTokenDeposited, p.Status)
	assert.Equal(t, "1000", p.NativeBalance().String())
	assert.Equal(t, "1000", f.native.BalanceOf(token.Custodian).String())

	// Second deposit: wrong status.
	err = f.mgr.DepositNativeToken(f.id, owner)
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestNativeDepositRollsBackOnFailedPull(t *testing.T) {
	f := newFixture(t)
	f.native.FailTransfers = true

	err := f.mgr.DepositNativeToken(f.id, owner)
	require.ErrorIs(t, err, types.ErrExternalCall)

	p := f.pool(t)
	assert.Equal(t, types.PreListing, p.Status)
	assert.True(t, p.NativeBalance().IsZero())
}

func TestDepositRequiresOpenWindow(t *testing.T) {
	f := newFixture(t)

	err := f.mgr.Deposit(f.id, alice, sdkmath.NewInt(100))
	assert.ErrorIs(t, err, types.ErrInvalidState)

	require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
	require.NoError(t, f.mgr.MarkPreLaunch(f.id, f.now))
	require.NoError(t, f.mgr.Deposit(f.id, alice, sdkmath.NewInt(100)))

	assert.Equal(t, "100", f.pool(t).Deposits.Total().String())
	assert.Equal(t, "100", f.funding.BalanceOf(token.Custodian).String())
}

func TestDepositUnwindsOnFailedPull(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
	require.NoError(t, f.mgr.MarkPreLaunch(f.id, f.now))

	f.funding.FailTransfers = true
	err := f.mgr.Deposit(f.id, alice, sdkmath.NewInt(100))
	require.ErrorIs(t, err, types.ErrExternalCall)

	p := f.pool(t)
	assert.True(t, p.Deposits.Total().IsZero())
	assert.True(t, p.Deposits.AmountOf(alice).IsZero())
}

func TestReentrantDepositIsRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
	require.NoError(t, f.mgr.MarkPreLaunch(f.id, f.now))

	var reentrant error
	f.funding.OnTransfer = func(from, to types.Address, amount sdkmath.Int) {
		if from == alice {
			reentrant = f.mgr.Deposit(f.id, bob, sdkmath.NewInt(50))
		}
	}

	require.NoError(t, f.mgr.Deposit(f.id, alice, sdkmath.NewInt(100)))
	assert.ErrorIs(t, reentrant, types.ErrReentrancy)

	// Only the outer deposit landed, and the reentrant caller saw the
	// already-committed ledger.
	assert.Equal(t, "100", f.pool(t).Deposits.Total().String())
}

func TestMarkPreLaunchWhitelistsNative(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.mgr.IsWhitelisted(f.native.Address()))

	require.NoError(t, f.mgr.MarkPreLaunch(f.id, f.now))
	assert.True(t, f.mgr.IsWhitelisted(f.native.Address()))
	assert.Equal(t, types.PreLaunch, f.pool(t).Status)
}

func TestDisableDepositsWaitsForWindow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.MarkPreLaunch(f.id, f.now))

	err := f.mgr.DisableDeposits(f.id, f.now.Add(time.Hour))
	assert.ErrorIs(t, err, types.ErrInvalidState)

	require.NoError(t, f.mgr.DisableDeposits(f.id, f.now.Add(8*24*time.Hour)))
	assert.Equal(t, types.PreLaunchDepositDisabled, f.pool(t).Status)
}

func TestFullLaunchWhenTargetMet(t *testing.T) {
	f := newFixture(t)
	f.open(t, map[types.Address]int64{alice: 600, bob: 400})

	maturity := f.now.Add(90 * 24 * time.Hour)
	require.NoError(t, f.mgr.Launch(f.id, maturity, f.now.Add(time.Hour)))

	p := f.pool(t)
	assert.Equal(t, types.Launch, p.Status)
	assert.Equal(t, "1000", p.Alloc.AllocatedNative.String())
	assert.Equal(t, "1000", p.Alloc.AllocatedFunding.String())
	assert.Equal(t, "0", p.Alloc.RefundableNative.String())
	assert.Equal(t, "42", p.Alloc.Liquidity.String())
	assert.True(t, p.NativeBalance().IsZero())
	assert.NotContains(t, f.mgr.LiveSnapshot(), f.id)
}

func TestPartialLaunchRefundsUnmatchedNative(t *testing.T) {
	f := newFixture(t)
	f.open(t, map[types.Address]int64{alice: 400})

	require.NoError(t, f.mgr.Launch(f.id, f.now.Add(day), f.now.Add(time.Hour)))

	p := f.pool(t)
	assert.Equal(t, types.PartiallyLaunched, p.Status)
	assert.Equal(t, "400", p.Alloc.AllocatedNative.String())
	assert.Equal(t, "400", p.Alloc.AllocatedFunding.String())
	assert.Equal(t, "600", p.Alloc.RefundableNative.String())

	// allocated + refundable == proposed, and the refundable part stays in
	// custody as the owner's claimable inventory.
	sum := p.Alloc.AllocatedNative.Add(p.Alloc.RefundableNative)
	assert.Equal(t, p.Info.ProposedNativeAmount.String(), sum.String())
	assert.Equal(t, "600", p.NativeBalance().String())
}

const day = 24 * time.Hour

func TestLaunchRequiresDisabledDeposits(t *testing.T) {
	f := newFixture(t)

	err := f.mgr.Launch(f.id, f.now.Add(day), f.now)
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestDoubleLaunchIsRejected(t *testing.T) {
	f := newFixture(t)
	f.open(t, map[types.Address]int64{alice: 1000})

	require.NoError(t, f.mgr.Launch(f.id, f.now.Add(day), f.now))
	err := f.mgr.Launch(f.id, f.now.Add(day), f.now)
	assert.ErrorIs(t, err, types.ErrInvalidState)
	assert.Equal(t, 1, f.router.calls)
}

func TestLaunchRollsBackOnRouterFailure(t *testing.T) {
	f := newFixture(t)
	f.open(t, map[types.Address]int64{alice: 1000})
	f.router.fail = true

	err := f.mgr.Launch(f.id, f.now.Add(day), f.now)
	require.ErrorIs(t, err, types.ErrExternalCall)

	p := f.pool(t)
	assert.Equal(t, types.PreLaunchDepositDisabled, p.Status)
	assert.Equal(t, "1000", p.NativeBalance().String())
	assert.True(t, p.Alloc.AllocatedNative.IsZero())
	assert.Contains(t, f.mgr.LiveSnapshot(), f.id)

	// The failure is recoverable: a later launch attempt succeeds.
	f.router.fail = false
	require.NoError(t, f.mgr.Launch(f.id, f.now.Add(day), f.now))
	assert.Equal(t, types.Launch, f.pool(t).Status)
}

func TestReentrantLaunchIsRejectedInsideRouter(t *testing.T) {
	f := newFixture(t)
	f.open(t, map[types.Address]int64{alice: 1000})

	var reentrant error
	var observed types.PoolStatus
	f.router.hook = func() {
		// The staged transition is already visible, and mutating the pool from
		// inside the router is rejected outright.
		observed = f.pool(t).Status
		reentrant = f.mgr.ClaimIncentives(f.id, owner)
	}

	require.NoError(t, f.mgr.Launch(f.id, f.now.Add(day), f.now))
	assert.Equal(t, types.Launch, observed)
	assert.ErrorIs(t, reentrant, types.ErrReentrancy)
}

func TestLaunchWithoutNativeInventoryFails(t *testing.T) {
	f := newFixture(t)
	// Straight to PreLaunch without the owner's native deposit.
	require.NoError(t, f.mgr.MarkPreLaunch(f.id, f.now))
	require.NoError(t, f.mgr.Deposit(f.id, alice, sdkmath.NewInt(500)))
	f.now = f.now.Add(8 * day)
	require.NoError(t, f.mgr.DisableDeposits(f.id, f.now))

	err := f.mgr.Launch(f.id, f.now.Add(day), f.now)
	assert.ErrorIs(t, err, types.ErrInvalidState)
	assert.Equal(t, 0, f.router.calls)
}

func TestMarkNotQualifiedRetiresPool(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.mgr.MarkNotQualified(f.id))
	assert.Equal(t, types.NotQualified, f.pool(t).Status)
	assert.Empty(t, f.mgr.LiveSnapshot())

	// Terminal is terminal.
	assert.ErrorIs(t, f.mgr.MarkNotQualified(f.id), types.ErrInvalidState)
	assert.ErrorIs(t, f.mgr.MarkPreLaunch(f.id, f.now), types.ErrInvalidState)
}

func TestIsClaimableTruthTable(t *testing.T) {
	t.Run("pre-listing: owner only", func(t *testing.T) {
		f := newFixture(t)
		claimable, err := f.mgr.IsClaimable(f.id, owner)
		require.NoError(t, err)
		assert.True(t, claimable)
		claimable, err = f.mgr.IsClaimable(f.id, alice)
		require.NoError(t, err)
		assert.False(t, claimable)
	})

	t.Run("disqualified: owner and depositors", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
		require.NoError(t, f.mgr.MarkPreLaunch(f.id, f.now))
		require.NoError(t, f.mgr.Deposit(f.id, alice, sdkmath.NewInt(100)))
		require.NoError(t, f.mgr.MarkNotQualified(f.id))

		for user, want := range map[types.Address]bool{owner: true, alice: true, bob: false} {
			claimable, err := f.mgr.IsClaimable(f.id, user)
			require.NoError(t, err)
			assert.Equal(t, want, claimable, user.String())
		}
	})

	t.Run("fully launched: nobody", func(t *testing.T) {
		f := newFixture(t)
		f.open(t, map[types.Address]int64{alice: 1000})
		require.NoError(t, f.mgr.Launch(f.id, f.now.Add(day), f.now))

		for _, user := range []types.Address{owner, alice} {
			claimable, err := f.mgr.IsClaimable(f.id, user)
			require.NoError(t, err)
			assert.False(t, claimable, user.String())
		}
	})

	t.Run("partially launched: owner refund and depositors", func(t *testing.T) {
		f := newFixture(t)
		f.open(t, map[types.Address]int64{alice: 400})
		require.NoError(t, f.mgr.Launch(f.id, f.now.Add(day), f.now))

		claimable, err := f.mgr.IsClaimable(f.id, owner)
		require.NoError(t, err)
		assert.True(t, claimable)
		claimable, err = f.mgr.IsClaimable(f.id, alice)
		require.NoError(t, err)
		assert.True(t, claimable)
	})
}

func TestOwnerRefundPaysOnce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
	require.NoError(t, f.mgr.MarkNotQualified(f.id))

	got, err := f.mgr.ClaimRefund(f.id, owner)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.String())
	assert.Equal(t, "1000000", f.native.BalanceOf(owner).String())

	got, err = f.mgr.ClaimRefund(f.id, owner)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestOwnerRefundRestoresOnFailedPush(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
	require.NoError(t, f.mgr.MarkNotQualified(f.id))

	f.native.FailTransfers = true
	_, err := f.mgr.ClaimRefund(f.id, owner)
	require.ErrorIs(t, err, types.ErrExternalCall)
	assert.Equal(t, "1000", f.pool(t).NativeBalance().String())
}

func TestDepositorRefundRequiresDisqualification(t *testing.T) {
	f := newFixture(t)
	f.open(t, map[types.Address]int64{alice: 400})
	require.NoError(t, f.mgr.Launch(f.id, f.now.Add(day), f.now))

	// Partially launched: deposits were consumed, not refundable.
	_, err := f.mgr.ClaimRefund(f.id, alice)
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestDepositorRefundAfterDisqualification(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
	require.NoError(t, f.mgr.MarkPreLaunch(f.id, f.now))
	require.NoError(t, f.mgr.Deposit(f.id, alice, sdkmath.NewInt(250)))
	require.NoError(t, f.mgr.MarkNotQualified(f.id))

	got, err := f.mgr.ClaimRefund(f.id, alice)
	require.NoError(t, err)
	assert.Equal(t, "250", got.String())
	assert.Equal(t, "1000000", f.funding.BalanceOf(alice).String())

	got, err = f.mgr.ClaimRefund(f.id, alice)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestIncentivesReturnToOwnerWhenDisqualified(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
	require.NoError(t, f.mgr.AddIncentive(f.id, owner, f.native, sdkmath.NewInt(300)))
	require.NoError(t, f.mgr.MarkNotQualified(f.id))

	before := f.native.BalanceOf(owner)
	require.NoError(t, f.mgr.ClaimIncentives(f.id, owner))
	assert.Equal(t, before.AddRaw(300).String(), f.native.BalanceOf(owner).String())

	// Depositors get nothing from a pool that never launched.
	require.NoError(t, f.mgr.ClaimIncentives(f.id, alice))

	// And the owner cannot double dip.
	before = f.native.BalanceOf(owner)
	require.NoError(t, f.mgr.ClaimIncentives(f.id, owner))
	assert.Equal(t, before.String(), f.native.BalanceOf(owner).String())
}

func TestIncentivesProRataAfterLaunch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
	require.NoError(t, f.mgr.AddIncentive(f.id, owner, f.native, sdkmath.NewInt(1000)))
	require.NoError(t, f.mgr.MarkPreLaunch(f.id, f.now))
	require.NoError(t, f.mgr.Deposit(f.id, alice, sdkmath.NewInt(300)))
	require.NoError(t, f.mgr.Deposit(f.id, bob, sdkmath.NewInt(100)))
	f.now = f.now.Add(8 * day)
	require.NoError(t, f.mgr.DisableDeposits(f.id, f.now))
	require.NoError(t, f.mgr.Launch(f.id, f.now.Add(day), f.now))

	aliceBefore := f.native.BalanceOf(alice)
	require.NoError(t, f.mgr.ClaimIncentives(f.id, alice))
	assert.Equal(t, aliceBefore.AddRaw(750).String(), f.native.BalanceOf(alice).String())

	bobBefore := f.native.BalanceOf(bob)
	require.NoError(t, f.mgr.ClaimIncentives(f.id, bob))
	assert.Equal(t, bobBefore.AddRaw(250).String(), f.native.BalanceOf(bob).String())
}

func TestIncentiveClaimBeforeTerminalIsRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
	require.NoError(t, f.mgr.AddIncentive(f.id, owner, f.native, sdkmath.NewInt(100)))

	err := f.mgr.ClaimIncentives(f.id, owner)
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestIncentiveBatchPartialFailure(t *testing.T) {
	f := newFixture(t)
	conn := token.NewSim(connector, "CONN", 18)
	conn.Mint(owner, sdkmath.NewInt(10_000))

	require.NoError(t, f.mgr.DepositNativeToken(f.id, owner))
	require.NoError(t, f.mgr.AddIncentive(f.id, owner, f.native, sdkmath.NewInt(300)))
	require.NoError(t, f.mgr.AddIncentive(f.id, owner, conn, sdkmath.NewInt(200)))
	require.NoError(t, f.mgr.MarkNotQualified(f.id))

	// First token pays, second fails mid-batch.
	conn.FailTransfers = true
	before := f.native.BalanceOf(owner)
	err := f.mgr.ClaimIncentives(f.id, owner)
	require.ErrorIs(t, err, types.ErrExternalCall)

	// The native payout stays settled; the connector amount stays claimable.
	assert.Equal(t, before.AddRaw(300).String(), f.native.BalanceOf(owner).String())

	conn.FailTransfers = false
	require.NoError(t, f.mgr.ClaimIncentives(f.id, owner))
	assert.Equal(t, "200", conn.BalanceOf(owner).String())

	// Nothing double pays on a final sweep.
	nb, cb := f.native.BalanceOf(owner), conn.BalanceOf(owner)
	require.NoError(t, f.mgr.ClaimIncentives(f.id, owner))
	assert.Equal(t, nb.String(), f.native.BalanceOf(owner).String())
	assert.Equal(t, cb.String(), conn.BalanceOf(owner).String())
}

func TestAddIncentiveRejectsUnknownToken(t *testing.T) {
	f := newFixture(t)
	rogue := token.NewSim(types.Address("0xrogue"), "RGE", 18)
	rogue.Mint(owner, sdkmath.NewInt(100))

	err := f.mgr.AddIncentive(f.id, owner, rogue, sdkmath.NewInt(100))
	assert.ErrorIs(t, err, types.ErrInvalidState)

	err = f.mgr.AddIncentive(f.id, alice, f.native, sdkmath.NewInt(100))
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestUnstakeOwnerLiquidity(t *testing.T) {
	f := newFixture(t)
	f.open(t, map[types.Address]int64{alice: 1000})
	maturity := f.now.Add(90 * day)
	require.NoError(t, f.mgr.Launch(f.id, maturity, f.now))

	err := f.mgr.UnstakeOwnerLiquidity(f.id, owner, f.now)
	assert.ErrorIs(t, err, types.ErrInvalidState)

	err = f.mgr.UnstakeOwnerLiquidity(f.id, alice, maturity.Add(time.Hour))
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, f.mgr.UnstakeOwnerLiquidity(f.id, owner, maturity.Add(time.Hour)))
	err = f.mgr.UnstakeOwnerLiquidity(f.id, owner, maturity.Add(2*time.Hour))
	assert.ErrorIs(t, err, types.ErrInvalidState)
}
