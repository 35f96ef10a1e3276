package service

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/account"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
)

// MarketSnapshot is a market record with derived display values.
type MarketSnapshot struct {
	launchpad.Market
	// SpotPrice is SOL per whole token.
	SpotPrice float64 `json:"spot_price"`
	// MarketCap values the total supply at the spot price, in lamports.
	MarketCap uint64 `json:"market_cap"`
	// CurveProgress is the share of curve inventory bought out, in [0,1].
	CurveProgress float64 `json:"curve_progress"`
	AsOf          int64   `json:"as_of"`
}

// Snapshot returns token's market with derived values.
func (s *Service) Snapshot(ctx context.Context, token solana.PublicKey) (*MarketSnapshot, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.loadMarket(ctx, token)
	if err != nil {
		return nil, err
	}
	return newSnapshot(cfg, m, s.clock.Now())
}

// Snapshots returns every market in address order.
func (s *Service) Snapshots(ctx context.Context) ([]*MarketSnapshot, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.store.List(ctx, account.KindMarket)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}

	now := s.clock.Now()
	out := make([]*MarketSnapshot, 0, len(records))
	for _, rec := range records {
		m, err := account.DecodeMarket(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("decode market %s: %w", rec.Address, err)
		}
		snap, err := newSnapshot(cfg, m, now)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func newSnapshot(cfg *launchpad.GlobalConfig, m *launchpad.Market, now int64) (*MarketSnapshot, error) {
	marketCap, err := curve.MarketCap(m.VirtualSolReserves, m.VirtualTokenReserves, m.TokenTotalSupply)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", m.Token, err)
	}
	return &MarketSnapshot{
		Market:        *m,
		SpotPrice:     m.SpotPrice().SolPerToken(),
		MarketCap:     marketCap,
		CurveProgress: curveProgress(cfg, m),
		AsOf:          now,
	}, nil
}

// curveProgress is sold/(sold+remaining), where sold is the drop in virtual
// token reserves since launch.
func curveProgress(cfg *launchpad.GlobalConfig, m *launchpad.Market) float64 {
	var sold uint64
	if cfg.InitialVirtualTokenReserves > m.VirtualTokenReserves {
		sold = cfg.InitialVirtualTokenReserves - m.VirtualTokenReserves
	}
	total := float64(sold) + float64(m.RealTokenReserves)
	if total == 0 {
		return 0
	}
	return float64(sold) / total
}
