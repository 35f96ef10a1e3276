package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader parses scenario files.
type Loader struct {
	logger *zap.Logger
}

// fileFormat is the YAML layout of a scenario file.
type fileFormat struct {
	Name    string `yaml:"name"`
	Wallets []struct {
		Name string  `yaml:"name"`
		Sol  float64 `yaml:"sol"`
	} `yaml:"wallets"`
	Tokens []struct {
		Name         string  `yaml:"name"`
		BurnPriceSol float64 `yaml:"burn_price_sol"`
		Supply       uint64  `yaml:"supply"`
	} `yaml:"tokens"`
	Steps []struct {
		Name            string  `yaml:"name"`
		Operation       string  `yaml:"operation"`
		Wallet          string  `yaml:"wallet"`
		Token           string  `yaml:"token"`
		At              int64   `yaml:"at"`
		AmountSol       float64 `yaml:"amount_sol"`
		AmountTokens    float64 `yaml:"amount_tokens"`
		PercentToSell   float64 `yaml:"percent_to_sell"`
		SlippagePercent float64 `yaml:"slippage_percent"`
		ExpectError     string  `yaml:"expect_error"`
	} `yaml:"steps"`
}

func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logger.Named("scenario_loader")}
}

func parseOperation(s string) (Operation, error) {
	op := Operation(s)
	switch op {
	case OperationLaunch, OperationBuy, OperationSell, OperationBurnForAccess,
		OperationWithdrawPlatformFees, OperationWithdrawCreatorFees,
		OperationClaimVested, OperationRevokeVesting:
		return op, nil
	default:
		return "", fmt.Errorf("unsupported operation: %q", s)
	}
}

func clamp(val, min, max, def float64) float64 {
	if val < min || val > max {
		return def
	}
	return val
}

// Load reads a scenario from a YAML file.
func (l *Loader) Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return l.Parse(data)
}

// Parse builds a scenario from YAML. Invalid steps are skipped with a
// warning; steps keep file order within equal offsets.
func (l *Loader) Parse(data []byte) (*Scenario, error) {
	var file fileFormat
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Steps) == 0 {
		return nil, fmt.Errorf("no steps found in scenario")
	}

	sc := &Scenario{Name: file.Name}

	wallets := map[string]bool{AuthorityWallet: true}
	for _, w := range file.Wallets {
		if w.Name == "" || wallets[w.Name] {
			l.logger.Warn("Skipping wallet with empty or duplicate name", zap.String("wallet", w.Name))
			continue
		}
		wallets[w.Name] = true
		sc.Wallets = append(sc.Wallets, Wallet{Name: w.Name, Sol: max(w.Sol, 0)})
	}

	tokens := make(map[string]bool)
	for _, t := range file.Tokens {
		if t.Name == "" || tokens[t.Name] {
			l.logger.Warn("Skipping token with empty or duplicate name", zap.String("token", t.Name))
			continue
		}
		tokens[t.Name] = true
		sc.Tokens = append(sc.Tokens, Token{Name: t.Name, BurnPriceSol: max(t.BurnPriceSol, 0), Supply: t.Supply})
	}

	for i, raw := range file.Steps {
		op, err := parseOperation(raw.Operation)
		if err != nil {
			l.logger.Warn("Skipping invalid step", zap.String("step", raw.Name), zap.Error(err))
			continue
		}

		step := &Step{
			ID:              i,
			Name:            raw.Name,
			Operation:       op,
			Wallet:          raw.Wallet,
			Token:           raw.Token,
			At:              raw.At,
			AmountSol:       raw.AmountSol,
			AmountTokens:    raw.AmountTokens,
			PercentToSell:   clamp(raw.PercentToSell, 0, 100, 0),
			SlippagePercent: clamp(raw.SlippagePercent, 0.5, 100.0, 1.0),
			ExpectError:     raw.ExpectError,
		}
		if step.Name == "" {
			step.Name = fmt.Sprintf("%s-%d", op, i)
		}

		if err := step.Validate(); err != nil {
			l.logger.Warn("Skipping invalid step", zap.String("step", step.Name), zap.Error(err))
			continue
		}
		if !wallets[step.Wallet] || !tokens[step.Token] {
			l.logger.Warn("Skipping step with unknown wallet or token",
				zap.String("step", step.Name),
				zap.String("wallet", step.Wallet),
				zap.String("token", step.Token))
			continue
		}

		sc.Steps = append(sc.Steps, step)
	}

	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("no valid steps loaded")
	}
	sort.SliceStable(sc.Steps, func(i, j int) bool { return sc.Steps[i].At < sc.Steps[j].At })

	l.logger.Info("Loaded scenario",
		zap.String("name", sc.Name),
		zap.Int("wallets", len(sc.Wallets)),
		zap.Int("tokens", len(sc.Tokens)),
		zap.Int("steps", len(sc.Steps)))
	return sc, nil
}
