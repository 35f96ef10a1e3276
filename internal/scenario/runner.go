package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/errcode"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
)

// Exchange is the operation surface a scenario drives.
type Exchange interface {
	Launch(ctx context.Context, req launchpad.LaunchRequest) (*launchpad.Market, *launchpad.VestingSchedule, error)
	Buy(ctx context.Context, token, buyer solana.PublicKey, solAmount, minTokensOut uint64) (*curve.BuyQuote, error)
	Sell(ctx context.Context, token, seller solana.PublicKey, tokenAmount, minSolOut uint64) (*curve.SellQuote, error)
	BurnForAccess(ctx context.Context, token, viewer solana.PublicKey) (*launchpad.BurnResult, error)
	WithdrawPlatformFees(ctx context.Context, token, caller solana.PublicKey) (uint64, error)
	WithdrawCreatorFees(ctx context.Context, token, caller solana.PublicKey) (uint64, error)
	ClaimVested(ctx context.Context, token, caller solana.PublicKey) (uint64, error)
	RevokeVesting(ctx context.Context, token, caller solana.PublicKey) (uint64, error)
	QuoteBuy(ctx context.Context, token solana.PublicKey, solAmount uint64) (curve.BuyQuote, error)
	QuoteSell(ctx context.Context, token solana.PublicKey, tokenAmount uint64) (curve.SellQuote, error)
}

// Funder credits wallets from outside the exchange.
type Funder interface {
	Fund(account solana.PublicKey, lamports uint64)
}

// Balances reads token holdings.
type Balances interface {
	BalanceOf(ctx context.Context, token, owner solana.PublicKey) (uint64, error)
}

// Result is the outcome of one step.
type Result struct {
	StepID      int       `json:"step_id"`
	Step        string    `json:"step"`
	Operation   Operation `json:"operation"`
	Wallet      string    `json:"wallet"`
	Token       string    `json:"token"`
	At          int64     `json:"at"`
	SolAmount   uint64    `json:"sol_amount"`
	TokenAmount uint64    `json:"token_amount"`
	// Expected is set when the step failed with its ExpectError code.
	Expected bool  `json:"expected"`
	Err      error `json:"-"`
}

// OK reports whether the step behaved as scripted.
func (r Result) OK() bool { return r.Err == nil || r.Expected }

// Report collects step results in execution order.
type Report struct {
	Scenario string
	Start    int64
	Results  []Result
	Wallets  map[string]solana.PublicKey
	Tokens   map[string]solana.PublicKey
}

// Failed returns the steps that did not behave as scripted.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Runner executes scenarios. Steps sharing an offset run as one phase;
// within a phase each token's steps run in order on their own goroutine.
type Runner struct {
	exchange  Exchange
	funder    Funder
	balances  Balances
	clock     *launchpad.ManualClock
	authority solana.PublicKey
	workers   int
	logger    *zap.Logger
}

func NewRunner(exchange Exchange, funder Funder, balances Balances, clock *launchpad.ManualClock,
	authority solana.PublicKey, workers int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		exchange:  exchange,
		funder:    funder,
		balances:  balances,
		clock:     clock,
		authority: authority,
		workers:   workers,
		logger:    logger.Named("scenario"),
	}
}

type env struct {
	wallets map[string]solana.PublicKey
	tokens  map[string]solana.PublicKey
	defs    map[string]Token
}

// Run funds the scenario's wallets and executes its steps with the clock
// set to start+At for each phase. Step failures are reported, not returned;
// the error is non-nil only when ctx ends the run early.
func (r *Runner) Run(ctx context.Context, sc *Scenario, start int64) (*Report, error) {
	e := env{
		wallets: map[string]solana.PublicKey{AuthorityWallet: r.authority},
		tokens:  make(map[string]solana.PublicKey, len(sc.Tokens)),
		defs:    make(map[string]Token, len(sc.Tokens)),
	}
	for _, w := range sc.Wallets {
		key := solana.NewWallet().PublicKey()
		e.wallets[w.Name] = key
		r.funder.Fund(key, Lamports(w.Sol))
	}
	for _, t := range sc.Tokens {
		e.tokens[t.Name] = solana.NewWallet().PublicKey()
		e.defs[t.Name] = t
	}

	results := make([]Result, len(sc.Steps))
	for lo := 0; lo < len(sc.Steps); {
		hi := lo
		for hi < len(sc.Steps) && sc.Steps[hi].At == sc.Steps[lo].At {
			hi++
		}
		r.clock.Set(start + sc.Steps[lo].At)
		if err := r.runPhase(ctx, &e, sc.Steps, results, lo, hi); err != nil {
			return nil, err
		}
		lo = hi
	}

	report := &Report{
		Scenario: sc.Name,
		Start:    start,
		Results:  results,
		Wallets:  e.wallets,
		Tokens:   e.tokens,
	}
	r.logger.Info("Scenario finished",
		zap.String("name", sc.Name),
		zap.Int("steps", len(results)),
		zap.Int("failed", len(report.Failed())))
	return report, nil
}

func (r *Runner) runPhase(ctx context.Context, e *env, steps []*Step, results []Result, lo, hi int) error {
	var order []string
	streams := make(map[string][]int)
	for i := lo; i < hi; i++ {
		tok := steps[i].Token
		if _, ok := streams[tok]; !ok {
			order = append(order, tok)
		}
		streams[tok] = append(streams[tok], i)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, tok := range order {
		indices := streams[tok]
		g.Go(func() error {
			for _, i := range indices {
				if err := gCtx.Err(); err != nil {
					return err
				}
				results[i] = r.execute(gCtx, e, steps[i])
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) execute(ctx context.Context, e *env, step *Step) Result {
	res := Result{
		StepID:    step.ID,
		Step:      step.Name,
		Operation: step.Operation,
		Wallet:    step.Wallet,
		Token:     step.Token,
		At:        step.At,
	}
	wallet := e.wallets[step.Wallet]
	token := e.tokens[step.Token]

	var err error
	switch step.Operation {
	case OperationLaunch:
		def := e.defs[step.Token]
		var m *launchpad.Market
		m, _, err = r.exchange.Launch(ctx, launchpad.LaunchRequest{
			Creator:     wallet,
			Token:       token,
			BurnPrice:   Lamports(def.BurnPriceSol),
			TotalSupply: BaseUnits(float64(def.Supply)),
		})
		if err == nil {
			res.TokenAmount = m.TokenTotalSupply
		}
	case OperationBuy:
		res.SolAmount = Lamports(step.AmountSol)
		res.TokenAmount, err = r.buy(ctx, token, wallet, res.SolAmount, step.SlippagePercent)
	case OperationSell:
		res.TokenAmount, err = r.sellAmount(ctx, token, wallet, step)
		if err == nil {
			res.SolAmount, err = r.sell(ctx, token, wallet, res.TokenAmount, step.SlippagePercent)
		}
	case OperationBurnForAccess:
		var b *launchpad.BurnResult
		b, err = r.exchange.BurnForAccess(ctx, token, wallet)
		if err == nil {
			res.SolAmount, res.TokenAmount = b.SolValue, b.TokensBurned
		}
	case OperationWithdrawPlatformFees:
		res.SolAmount, err = r.exchange.WithdrawPlatformFees(ctx, token, wallet)
	case OperationWithdrawCreatorFees:
		res.SolAmount, err = r.exchange.WithdrawCreatorFees(ctx, token, wallet)
	case OperationClaimVested:
		res.TokenAmount, err = r.exchange.ClaimVested(ctx, token, wallet)
	case OperationRevokeVesting:
		res.TokenAmount, err = r.exchange.RevokeVesting(ctx, token, wallet)
	default:
		err = fmt.Errorf("unsupported operation: %q", step.Operation)
	}

	res.Expected, res.Err = checkExpectation(step, err)

	log := r.logger.With(
		zap.String("step", step.Name),
		zap.String("operation", string(step.Operation)),
		zap.String("token", step.Token),
		zap.Int64("at", step.At))
	switch {
	case res.Err == nil:
		log.Debug("Step executed", zap.Uint64("sol", res.SolAmount), zap.Uint64("tokens", res.TokenAmount))
	case res.Expected:
		log.Debug("Step failed as expected", zap.Error(res.Err))
	default:
		log.Warn("Step failed", zap.Error(res.Err))
	}
	return res
}

// checkExpectation reports whether err matches the step's expected code
// and returns the error to record.
func checkExpectation(step *Step, err error) (bool, error) {
	if step.ExpectError == "" {
		return false, err
	}
	if err == nil {
		return false, fmt.Errorf("expected %s, step succeeded", step.ExpectError)
	}
	e, ok := errcode.As(err)
	return ok && e.Name == step.ExpectError, err
}

func (r *Runner) buy(ctx context.Context, token, wallet solana.PublicKey, lamports uint64, slippage float64) (uint64, error) {
	q, err := r.exchange.QuoteBuy(ctx, token, lamports)
	if err != nil {
		return 0, err
	}
	minOut, err := withSlippage(q.TokensOut, slippage)
	if err != nil {
		return 0, err
	}
	bought, err := r.exchange.Buy(ctx, token, wallet, lamports, minOut)
	if err != nil {
		return 0, err
	}
	return bought.TokensOut, nil
}

func (r *Runner) sell(ctx context.Context, token, wallet solana.PublicKey, amount uint64, slippage float64) (uint64, error) {
	q, err := r.exchange.QuoteSell(ctx, token, amount)
	if err != nil {
		return 0, err
	}
	minOut, err := withSlippage(q.NetSol, slippage)
	if err != nil {
		return 0, err
	}
	sold, err := r.exchange.Sell(ctx, token, wallet, amount, minOut)
	if err != nil {
		return 0, err
	}
	return sold.NetSol, nil
}

func (r *Runner) sellAmount(ctx context.Context, token, wallet solana.PublicKey, step *Step) (uint64, error) {
	if step.AmountTokens > 0 {
		return BaseUnits(step.AmountTokens), nil
	}
	held, err := r.balances.BalanceOf(ctx, token, wallet)
	if err != nil {
		return 0, fmt.Errorf("holdings: %w", err)
	}
	return curve.MulDiv(held, percentBps(step.PercentToSell), curve.BpsDenominator)
}

// withSlippage lowers a quoted output by slippage percent.
func withSlippage(quoted uint64, slippage float64) (uint64, error) {
	bps := percentBps(slippage)
	if bps > curve.BpsDenominator {
		return 0, errors.New("slippage above 100%")
	}
	return curve.MulDiv(quoted, curve.BpsDenominator-bps, curve.BpsDenominator)
}

func percentBps(pct float64) uint64 {
	return uint64(math.Round(math.Max(pct, 0) * 100))
}
