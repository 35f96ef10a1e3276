// Package service runs exchange operations against persisted records.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/account"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/metrics"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// Journal operation names.
const (
	OpInitialize           = "initialize"
	OpLaunch               = "launch"
	OpBuy                  = "buy"
	OpSell                 = "sell"
	OpBurnForAccess        = "burn_for_access"
	OpWithdrawPlatformFees = "withdraw_platform_fees"
	OpWithdrawCreatorFees  = "withdraw_creator_fees"
	OpClaimVested          = "claim_vested"
	OpRevokeVesting        = "revoke_vesting"
)

var (
	ErrNotInitialized     = errors.New("exchange not initialized")
	ErrAlreadyInitialized = errors.New("exchange already initialized")
	ErrMarketNotFound     = errors.New("market not found")
	ErrMarketExists       = errors.New("market already exists")
	ErrVestingNotFound    = errors.New("vesting schedule not found")
)

// Options are the optional collaborators of a Service.
type Options struct {
	// Clock defaults to wall time.
	Clock launchpad.Clock
	// Bus receives an event after every committed mutation. May be nil.
	Bus *events.Bus
	// Metrics defaults to a private collector.
	Metrics *metrics.Collector
	// DefaultTotalSupply applies to launches that name no supply.
	DefaultTotalSupply uint64
}

// Service loads records, applies one exchange operation and persists the
// changed records together with a journal entry. Mutations on one token are
// serialised; distinct tokens run in parallel.
type Service struct {
	store    storage.Store
	exchange *launchpad.Exchange
	addrs    *launchpad.AddressBook
	clock    launchpad.Clock
	bus      *events.Bus
	metrics  *metrics.Collector
	supply   uint64
	logger   *zap.Logger

	locks *keyedMutex

	cfgMu sync.RWMutex
	cfg   *launchpad.GlobalConfig
}

func New(store storage.Store, exchange *launchpad.Exchange, opts Options, logger *zap.Logger) *Service {
	if opts.Clock == nil {
		opts.Clock = launchpad.SystemClock{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector("")
	}
	return &Service{
		store:    store,
		exchange: exchange,
		addrs:    exchange.Addresses(),
		clock:    opts.Clock,
		bus:      opts.Bus,
		metrics:  opts.Metrics,
		supply:   opts.DefaultTotalSupply,
		logger:   logger.Named("service"),
		locks:    newKeyedMutex(),
	}
}

// Metrics returns the collector operations report to.
func (s *Service) Metrics() *metrics.Collector { return s.metrics }

// Initialize validates params and stores the global configuration once.
func (s *Service) Initialize(ctx context.Context, params launchpad.InitParams) (cfg *launchpad.GlobalConfig, err error) {
	defer s.observe(OpInitialize, time.Now(), &err)

	addr := s.addrs.GlobalConfig()
	unlock := s.locks.Lock(addr)
	defer unlock()

	if _, err := s.store.Get(ctx, addr); err == nil {
		return nil, ErrAlreadyInitialized
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	cfg, err = launchpad.Initialize(params)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var b batch
	b.config(addr, cfg)
	if err := s.commit(ctx, &storage.JournalEntry{
		Operation: OpInitialize,
		Actor:     cfg.Authority,
		Timestamp: now,
	}, &b); err != nil {
		return nil, err
	}

	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()

	s.logger.Info("Exchange initialized",
		zap.String("authority", cfg.Authority.String()),
		zap.Uint16("fee_bps", cfg.FeeBps))
	return cfg, nil
}

// Config returns the stored global configuration.
func (s *Service) Config(ctx context.Context) (*launchpad.GlobalConfig, error) {
	s.cfgMu.RLock()
	cfg := s.cfg
	s.cfgMu.RUnlock()
	if cfg != nil {
		return cfg, nil
	}

	rec, err := s.store.Get(ctx, s.addrs.GlobalConfig())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg, err = account.DecodeConfig(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
	return cfg, nil
}

// Launch creates the market and vesting schedule of a new token and
// updates the creator's cooldown profile.
func (s *Service) Launch(ctx context.Context, req launchpad.LaunchRequest) (m *launchpad.Market, v *launchpad.VestingSchedule, err error) {
	defer s.observe(OpLaunch, time.Now(), &err)
	log := logger.WithToken(logger.WithOperation(s.logger, OpLaunch), req.Token)

	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, nil, err
	}
	if req.TotalSupply == 0 {
		req.TotalSupply = s.supply
	}

	marketAddr := s.addrs.Market(req.Token)
	profileAddr := s.addrs.CreatorProfile(req.Creator)
	unlock := s.locks.Lock(req.Token, profileAddr)
	defer unlock()

	if _, err := s.store.Get(ctx, marketAddr); err == nil {
		return nil, nil, fmt.Errorf("launch %s: %w", req.Token, ErrMarketExists)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("launch: %w", err)
	}
	profile, err := s.loadProfile(ctx, req.Creator)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	m, v, err = s.exchange.Launch(ctx, cfg, profile, req, now, s.persist(OpLaunch, req.Token, req.Creator, now))
	if err != nil {
		log.Warn("Launch rejected", zap.Error(err))
		return nil, nil, err
	}

	s.metrics.MarketsLaunched.Inc()
	s.publish(&events.TokenLaunchedEvent{
		BaseEvent:       events.NewBase(events.TokenLaunched, req.Token, now),
		Creator:         req.Creator,
		CurveTokens:     m.RealTokenReserves,
		VestingTokens:   v.TotalAllocation,
		BurnPrice:       m.BurnPrice,
		CreatorLaunches: profile.LaunchesCount,
	})
	log.Info("Market launched", zap.Uint32("creator_launches", profile.LaunchesCount))
	return m, v, nil
}

// Buy spends solAmount lamports of buyer on token.
func (s *Service) Buy(ctx context.Context, token, buyer solana.PublicKey, solAmount, minTokensOut uint64) (q *curve.BuyQuote, err error) {
	defer s.observe(OpBuy, time.Now(), &err)

	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(token)
	defer unlock()

	m, err := s.loadMarket(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	q, err = s.exchange.Buy(ctx, cfg, m, buyer, solAmount, minTokensOut, s.persist(OpBuy, token, buyer, now))
	if err != nil {
		return nil, err
	}

	s.metrics.VolumeLamports.WithLabelValues(OpBuy).Add(float64(solAmount))
	s.metrics.AddFees(q.Fee.Platform, q.Fee.Creator)
	s.publish(&events.TradeEvent{
		BaseEvent:   events.NewBase(events.TradeBuy, token, now),
		Trader:      buyer,
		SolAmount:   solAmount,
		TokenAmount: q.TokensOut,
		Fee:         q.Fee.Total,
		PlatformFee: q.Fee.Platform,
		CreatorFee:  q.Fee.Creator,
		SpotPrice:   m.SpotPrice().SolPerToken(),
	})
	return q, nil
}

// Sell returns tokenAmount of seller's tokens to the curve.
func (s *Service) Sell(ctx context.Context, token, seller solana.PublicKey, tokenAmount, minSolOut uint64) (q *curve.SellQuote, err error) {
	defer s.observe(OpSell, time.Now(), &err)

	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(token)
	defer unlock()

	m, err := s.loadMarket(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	q, err = s.exchange.Sell(ctx, cfg, m, seller, tokenAmount, minSolOut, s.persist(OpSell, token, seller, now))
	if err != nil {
		return nil, err
	}

	s.metrics.VolumeLamports.WithLabelValues(OpSell).Add(float64(q.GrossSol))
	s.metrics.AddFees(q.Fee.Platform, q.Fee.Creator)
	s.publish(&events.TradeEvent{
		BaseEvent:   events.NewBase(events.TradeSell, token, now),
		Trader:      seller,
		SolAmount:   q.NetSol,
		TokenAmount: tokenAmount,
		Fee:         q.Fee.Total,
		PlatformFee: q.Fee.Platform,
		CreatorFee:  q.Fee.Creator,
		SpotPrice:   m.SpotPrice().SolPerToken(),
	})
	return q, nil
}

// BurnForAccess burns the market's burn price worth of viewer's tokens.
func (s *Service) BurnForAccess(ctx context.Context, token, viewer solana.PublicKey) (res *launchpad.BurnResult, err error) {
	defer s.observe(OpBurnForAccess, time.Now(), &err)

	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(token)
	defer unlock()

	m, err := s.loadMarket(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	res, err = s.exchange.BurnForAccess(ctx, cfg, m, viewer, s.persist(OpBurnForAccess, token, viewer, now))
	if err != nil {
		return nil, err
	}

	s.metrics.TokensBurned.Add(float64(res.TokensBurned))
	s.metrics.AddFees(res.Fee.Platform, res.Fee.Creator)
	s.publish(&events.AccessBurnedEvent{
		BaseEvent:    events.NewBase(events.AccessBurned, token, now),
		Viewer:       viewer,
		TokensBurned: res.TokensBurned,
		SolValue:     res.SolValue,
		Fee:          res.Fee.Total,
	})
	return res, nil
}

// WithdrawPlatformFees pays the platform's accrual on token to the authority.
func (s *Service) WithdrawPlatformFees(ctx context.Context, token, caller solana.PublicKey) (uint64, error) {
	return s.withdraw(ctx, OpWithdrawPlatformFees, events.RecipientPlatform, token, caller,
		func(cfg *launchpad.GlobalConfig, m *launchpad.Market, commit launchpad.Commit) (uint64, error) {
			return s.exchange.WithdrawPlatformFees(ctx, cfg, m, caller, commit)
		})
}

// WithdrawCreatorFees pays the creator's accrual on token to the creator.
func (s *Service) WithdrawCreatorFees(ctx context.Context, token, caller solana.PublicKey) (uint64, error) {
	return s.withdraw(ctx, OpWithdrawCreatorFees, events.RecipientCreator, token, caller,
		func(_ *launchpad.GlobalConfig, m *launchpad.Market, commit launchpad.Commit) (uint64, error) {
			return s.exchange.WithdrawCreatorFees(ctx, m, caller, commit)
		})
}

func (s *Service) withdraw(ctx context.Context, op string, recipient events.FeeRecipient, token, caller solana.PublicKey,
	apply func(*launchpad.GlobalConfig, *launchpad.Market, launchpad.Commit) (uint64, error)) (amount uint64, err error) {
	defer s.observe(op, time.Now(), &err)

	cfg, err := s.Config(ctx)
	if err != nil {
		return 0, err
	}
	unlock := s.locks.Lock(token)
	defer unlock()

	m, err := s.loadMarket(ctx, token)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	amount, err = apply(cfg, m, s.persist(op, token, caller, now))
	if err != nil || amount == 0 {
		return 0, err
	}

	s.metrics.FeesWithdrawn.WithLabelValues(string(recipient)).Add(float64(amount))
	s.publish(&events.FeesWithdrawnEvent{
		BaseEvent: events.NewBase(events.FeesWithdrawn, token, now),
		Recipient: recipient,
		To:        caller,
		Amount:    amount,
	})
	return amount, nil
}

// ClaimVested releases the creator's unlocked allocation of token.
func (s *Service) ClaimVested(ctx context.Context, token, caller solana.PublicKey) (amount uint64, err error) {
	defer s.observe(OpClaimVested, time.Now(), &err)

	cfg, err := s.Config(ctx)
	if err != nil {
		return 0, err
	}
	unlock := s.locks.Lock(token)
	defer unlock()

	v, err := s.loadVesting(ctx, token)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	amount, err = s.exchange.Claim(ctx, cfg, v, caller, now, s.persist(OpClaimVested, token, caller, now))
	if err != nil {
		return 0, err
	}

	s.metrics.VestingClaimed.Add(float64(amount))
	s.publish(&events.VestingClaimedEvent{
		BaseEvent:    events.NewBase(events.VestingClaimed, token, now),
		Creator:      caller,
		Amount:       amount,
		ClaimedTotal: v.ClaimedAmount,
	})
	return amount, nil
}

// RevokeVesting ends token's schedule and burns the unclaimed allocation.
// Repeated calls return 0 and persist nothing.
func (s *Service) RevokeVesting(ctx context.Context, token, caller solana.PublicKey) (burned uint64, err error) {
	defer s.observe(OpRevokeVesting, time.Now(), &err)

	cfg, err := s.Config(ctx)
	if err != nil {
		return 0, err
	}
	unlock := s.locks.Lock(token)
	defer unlock()

	m, err := s.loadMarket(ctx, token)
	if err != nil {
		return 0, err
	}
	v, err := s.loadVesting(ctx, token)
	if err != nil {
		return 0, err
	}
	wasRevoked := v.Revoked
	now := s.clock.Now()
	burned, err = s.exchange.Revoke(ctx, cfg, v, m, caller, s.persist(OpRevokeVesting, token, caller, now))
	if err != nil || wasRevoked {
		return burned, err
	}

	s.metrics.VestingBurned.Add(float64(burned))
	s.publish(&events.VestingRevokedEvent{
		BaseEvent: events.NewBase(events.VestingRevoked, token, now),
		Burned:    burned,
	})
	return burned, nil
}

// Market returns the stored market of token.
func (s *Service) Market(ctx context.Context, token solana.PublicKey) (*launchpad.Market, error) {
	return s.loadMarket(ctx, token)
}

// Vesting returns the stored vesting schedule of token.
func (s *Service) Vesting(ctx context.Context, token solana.PublicKey) (*launchpad.VestingSchedule, error) {
	return s.loadVesting(ctx, token)
}

// Profile returns the creator's cooldown profile; creators who never
// launched get an empty one.
func (s *Service) Profile(ctx context.Context, creator solana.PublicKey) (*launchpad.CreatorProfile, error) {
	return s.loadProfile(ctx, creator)
}

// QuoteBuy previews Buy at the current reserves.
func (s *Service) QuoteBuy(ctx context.Context, token solana.PublicKey, solAmount uint64) (curve.BuyQuote, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return curve.BuyQuote{}, err
	}
	m, err := s.loadMarket(ctx, token)
	if err != nil {
		return curve.BuyQuote{}, err
	}
	return curve.QuoteBuy(m.VirtualSolReserves, m.VirtualTokenReserves, solAmount, cfg.FeeBps)
}

// QuoteSell previews Sell at the current reserves.
func (s *Service) QuoteSell(ctx context.Context, token solana.PublicKey, tokenAmount uint64) (curve.SellQuote, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return curve.SellQuote{}, err
	}
	m, err := s.loadMarket(ctx, token)
	if err != nil {
		return curve.SellQuote{}, err
	}
	return curve.QuoteSell(m.VirtualSolReserves, m.VirtualTokenReserves, tokenAmount, cfg.FeeBps)
}

// Claimable previews ClaimVested at the current clock reading.
func (s *Service) Claimable(ctx context.Context, token solana.PublicKey) (uint64, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return 0, err
	}
	v, err := s.loadVesting(ctx, token)
	if err != nil {
		return 0, err
	}
	return launchpad.Claimable(cfg, v, s.clock.Now()), nil
}

// Reconcile checks token's market record against the ledger and vault.
func (s *Service) Reconcile(ctx context.Context, token solana.PublicKey) error {
	unlock := s.locks.Lock(token)
	defer unlock()

	m, err := s.loadMarket(ctx, token)
	if err != nil {
		return err
	}
	return s.exchange.Reconcile(ctx, m)
}

// Journal returns committed operations matching filter.
func (s *Service) Journal(ctx context.Context, filter storage.JournalFilter) ([]*storage.JournalEntry, error) {
	return s.store.Journal(ctx, filter)
}

func (s *Service) loadMarket(ctx context.Context, token solana.PublicKey) (*launchpad.Market, error) {
	rec, err := s.store.Get(ctx, s.addrs.Market(token))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("market %s: %w", token, ErrMarketNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load market %s: %w", token, err)
	}
	return account.DecodeMarket(rec.Data)
}

func (s *Service) loadVesting(ctx context.Context, token solana.PublicKey) (*launchpad.VestingSchedule, error) {
	rec, err := s.store.Get(ctx, s.addrs.Vesting(token))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("vesting %s: %w", token, ErrVestingNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load vesting %s: %w", token, err)
	}
	return account.DecodeVesting(rec.Data)
}

func (s *Service) loadProfile(ctx context.Context, creator solana.PublicKey) (*launchpad.CreatorProfile, error) {
	rec, err := s.store.Get(ctx, s.addrs.CreatorProfile(creator))
	if errors.Is(err, storage.ErrNotFound) {
		return launchpad.NewCreatorProfile(creator), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", creator, err)
	}
	return account.DecodeProfile(rec.Data)
}

// persist returns the commit step of one operation: its changed records and
// journal entry in one store call. A failed save makes the exchange reverse
// the operation's custody moves.
func (s *Service) persist(op string, token, actor solana.PublicKey, now int64) launchpad.Commit {
	return func(ctx context.Context, ch launchpad.Changes) error {
		var b batch
		if ch.Market != nil {
			b.market(s.addrs.Market(ch.Market.Token), ch.Market)
		}
		if ch.Vesting != nil {
			b.vesting(s.addrs.Vesting(ch.Vesting.Token), ch.Vesting)
		}
		if ch.Profile != nil {
			b.profile(s.addrs.CreatorProfile(ch.Profile.Creator), ch.Profile)
		}
		return s.commit(ctx, &storage.JournalEntry{
			Operation:   op,
			Token:       token,
			Actor:       actor,
			SolAmount:   ch.SolAmount,
			TokenAmount: ch.TokenAmount,
			Fee:         ch.Fee,
			Timestamp:   now,
		}, &b)
	}
}

// commit saves the batch and journal entry in one store call.
func (s *Service) commit(ctx context.Context, entry *storage.JournalEntry, b *batch) error {
	if b.err != nil {
		return fmt.Errorf("%s: encode: %w", entry.Operation, b.err)
	}
	entry.ID = uuid.New().String()
	entry.RecordedAt = time.Now().UTC()
	for _, r := range b.records {
		r.UpdatedAt = entry.RecordedAt
	}

	if err := s.store.Save(ctx, entry, b.records...); err != nil {
		s.logger.Error("Failed to persist operation, reverting custody",
			zap.String("operation", entry.Operation),
			zap.String("token", entry.Token.String()),
			zap.String("entry_id", entry.ID),
			zap.Error(err))
		return fmt.Errorf("%s: persist: %w", entry.Operation, err)
	}
	return nil
}

func (s *Service) publish(event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event); err != nil {
		s.logger.Warn("Event dropped",
			zap.String("type", string(event.Type())),
			zap.String("token", event.Token().String()),
			zap.Error(err))
	}
}

func (s *Service) observe(op string, started time.Time, err *error) {
	s.metrics.Observe(op, started, *err)
}

// batch collects encoded records, keeping the first encode failure.
type batch struct {
	records []*storage.Record
	err     error
}

func (b *batch) add(addr solana.PublicKey, kind account.Kind, data []byte, err error) {
	if b.err != nil {
		return
	}
	if err != nil {
		b.err = err
		return
	}
	b.records = append(b.records, &storage.Record{Address: addr, Kind: kind, Data: data})
}

func (b *batch) config(addr solana.PublicKey, cfg *launchpad.GlobalConfig) {
	data, err := account.EncodeConfig(cfg)
	b.add(addr, account.KindGlobalConfig, data, err)
}

func (b *batch) market(addr solana.PublicKey, m *launchpad.Market) {
	data, err := account.EncodeMarket(m)
	b.add(addr, account.KindMarket, data, err)
}

func (b *batch) vesting(addr solana.PublicKey, v *launchpad.VestingSchedule) {
	data, err := account.EncodeVesting(v)
	b.add(addr, account.KindVesting, data, err)
}

func (b *batch) profile(addr solana.PublicKey, p *launchpad.CreatorProfile) {
	data, err := account.EncodeProfile(p)
	b.add(addr, account.KindCreatorProfile, data, err)
}
