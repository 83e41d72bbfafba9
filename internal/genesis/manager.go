/*

The Manager is the factory and registry for genesis pools: it owns the live-pool
set, the native-token whitelist, the approved connector set for incentives, and
the per-pool reentrancy locks. Every mutating operation validates its capability
first, takes the pool's lock, commits ledger state, and only then performs
outbound transfers.

*/

package genesis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian-dex/gpm/internal/guard"
	"github.com/meridian-dex/gpm/internal/logger"
	"github.com/meridian-dex/gpm/internal/state"
	"github.com/meridian-dex/gpm/internal/token"
	"github.com/meridian-dex/gpm/internal/types"
)

const lockKindPool = "pool"

// Config holds the dependencies for creating a Manager.
type Config struct {
	// Router creates the liquidity position at launch.
	Router Router

	// Treasury is the custody account holding pool funds between deposit and
	// launch. Validated non-zero at construction, never at transfer time.
	Treasury types.Address

	// DepositWindow is how long a pool accepts public deposits after entering
	// PreLaunch.
	DepositWindow time.Duration

	// ConnectorTokens are the pre-approved tokens accepted as incentives in
	// addition to each pool's native token.
	ConnectorTokens []types.Address
}

// Manager owns all genesis pools.
type Manager struct {
	logger zerolog.Logger
	locks  *guard.EntityLocks

	router        Router
	treasury      types.Address
	depositWindow time.Duration

	connectors map[types.Address]bool
	whitelist  map[types.Address]bool

	pools  map[types.PoolID]*Pool
	live   []types.PoolID
	nextID types.PoolID
}

// NewManager creates a Manager after validating its dependencies.
func NewManager(cfg Config) (*Manager, error) {
	if err := validateManagerConfig(cfg); err != nil {
		return nil, fmt.Errorf("manager configuration validation failed: %w", err)
	}

	m := &Manager{
		logger:        logger.GetForComponent("genesis_manager"),
		locks:         guard.NewEntityLocks(),
		router:        cfg.Router,
		treasury:      cfg.Treasury,
		depositWindow: cfg.DepositWindow,
		connectors:    make(map[types.Address]bool),
		whitelist:     make(map[types.Address]bool),
		pools:         make(map[types.PoolID]*Pool),
		nextID:        1,
	}
	for _, c := range cfg.ConnectorTokens {
		if !c.IsZero() {
			m.connectors[c] = true
		}
	}

	m.logger.Info().
		Str("treasury", cfg.Treasury.String()).
		Dur("depositWindow", cfg.DepositWindow).
		Int("connectorTokens", len(m.connectors)).
		Msg("Genesis manager created")

	return m, nil
}

func validateManagerConfig(cfg Config) error {
	if cfg.Router == nil {
		return fmt.Errorf("%w: router", types.ErrMissingDependency)
	}
	if cfg.Treasury.IsZero() {
		return fmt.Errorf("%w: treasury", types.ErrZeroAddress)
	}
	if cfg.DepositWindow <= 0 {
		return fmt.Errorf("%w: deposit window must be positive", types.ErrArithmeticBounds)
	}
	return nil
}

// CreatePool registers a new genesis pool in PreListing. The native and funding
// contracts are the untrusted token surfaces the pool will transfer through.
func (m *Manager) CreatePool(info types.GenesisInfo, native, funding token.Contract) (types.PoolID, error) {
	if info.TokenOwner.IsZero() || info.NativeToken.IsZero() || info.FundingToken.IsZero() {
		return 0, fmt.Errorf("%w: pool addresses", types.ErrZeroAddress)
	}
	if native == nil || funding == nil {
		return 0, fmt.Errorf("%w: token contracts", types.ErrMissingDependency)
	}
	if info.NativeToken == info.FundingToken {
		return 0, fmt.Errorf("%w: native and funding token must differ", types.ErrInvalidState)
	}
	if info.ProposedNativeAmount.IsNil() || !info.ProposedNativeAmount.IsPositive() {
		return 0, fmt.Errorf("%w: proposed native amount must be positive", types.ErrArithmeticBounds)
	}

	id := m.nextID
	m.nextID++

	p := newPool(id, info, native, funding)
	m.pools[id] = p
	m.live = append(m.live, id)

	m.logger.Info().
		Uint64("poolID", uint64(id)).
		Str("nativeToken", info.NativeToken.String()).
		Str("fundingToken", info.FundingToken.String()).
		Str("symbol", token.TrySymbol(native)).
		Str("tokenOwner", info.TokenOwner.String()).
		Str("proposedNative", info.ProposedNativeAmount.String()).
		Msg("Genesis pool created")

	m.archive(p)
	return id, nil
}

// Pool returns the pool by id.
func (m *Manager) Pool(id types.PoolID) (*Pool, error) {
	p, ok := m.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", types.ErrPoolNotFound, id)
	}
	return p, nil
}

// LiveSnapshot returns a copy of the live-pool set. Batch operations iterate
// the copy so a reentrant mutation of the master set cannot skip or
// double-process a pool within one pass.
func (m *Manager) LiveSnapshot() []types.PoolID {
	out := make([]types.PoolID, len(m.live))
	copy(out, m.live)
	return out
}

// retire removes a pool from the live set once it reaches a terminal status.
// The pool itself stays registered: claims remain open after termination.
func (m *Manager) retire(id types.PoolID) {
	for i, live := range m.live {
		if live == id {
			m.live = append(m.live[:i], m.live[i+1:]...)
			return
		}
	}
}

// IsWhitelisted reports whether the native token was whitelisted at pre-launch.
func (m *Manager) IsWhitelisted(tok types.Address) bool {
	return m.whitelist[tok]
}

// Treasury returns the custody account.
func (m *Manager) Treasury() types.Address {
	return m.treasury
}

// lockPool acquires the pool's reentrancy lock.
func (m *Manager) lockPool(id types.PoolID) (func(), error) {
	return m.locks.Acquire(lockKindPool, strconv.FormatUint(uint64(id), 10))
}

// archive persists the pool snapshot, best effort. A missing or failing store
// never blocks accounting.
func (m *Manager) archive(p *Pool) {
	if err := state.SavePoolSnapshot(p.Snapshot()); err != nil {
		m.logger.Debug().Err(err).Uint64("poolID", uint64(p.ID)).Msg("Pool snapshot not archived")
	}
}
