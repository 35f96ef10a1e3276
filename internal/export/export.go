package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/service"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format    ExportFormat
	StartTime int64 // unix seconds, inclusive; 0 means unbounded
	EndTime   int64 // unix seconds, exclusive; 0 means unbounded
	Token     solana.PublicKey
	Operation string
	OutputDir string
}

// Exporter writes journal entries and market snapshots to files.
type Exporter struct {
	logger *zap.Logger
}

func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{
		logger: logger.Named("export"),
	}
}

// JournalHeaders is the CSV header of journal exports.
func JournalHeaders() []string {
	return []string{"id", "timestamp", "operation", "token", "actor", "sol_amount", "token_amount", "fee"}
}

func journalRow(e *storage.JournalEntry) []string {
	return []string{
		e.ID,
		strconv.FormatInt(e.Timestamp, 10),
		e.Operation,
		e.Token.String(),
		e.Actor.String(),
		strconv.FormatUint(e.SolAmount, 10),
		strconv.FormatUint(e.TokenAmount, 10),
		strconv.FormatUint(e.Fee, 10),
	}
}

// SnapshotHeaders is the CSV header of market exports.
func SnapshotHeaders() []string {
	return []string{
		"token", "creator", "virtual_sol_reserves", "virtual_token_reserves",
		"real_sol_reserves", "real_token_reserves", "token_total_supply", "burn_price",
		"platform_fees_accrued", "creator_fees_accrued", "spot_price", "market_cap",
		"curve_progress", "as_of",
	}
}

func snapshotRow(s *service.MarketSnapshot) []string {
	return []string{
		s.Token.String(),
		s.Creator.String(),
		strconv.FormatUint(s.VirtualSolReserves, 10),
		strconv.FormatUint(s.VirtualTokenReserves, 10),
		strconv.FormatUint(s.RealSolReserves, 10),
		strconv.FormatUint(s.RealTokenReserves, 10),
		strconv.FormatUint(s.TokenTotalSupply, 10),
		strconv.FormatUint(s.BurnPrice, 10),
		strconv.FormatUint(s.PlatformFeesAccrued, 10),
		strconv.FormatUint(s.CreatorFeesAccrued, 10),
		strconv.FormatFloat(s.SpotPrice, 'g', -1, 64),
		strconv.FormatUint(s.MarketCap, 10),
		strconv.FormatFloat(s.CurveProgress, 'f', 6, 64),
		strconv.FormatInt(s.AsOf, 10),
	}
}

// ExportJournal writes the entries matching options and returns the file path.
func (ex *Exporter) ExportJournal(entries []*storage.JournalEntry, options ExportOptions) (string, error) {
	filtered := filterEntries(entries, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no journal entries match the export criteria")
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp < filtered[j].Timestamp
	})

	outputPath, err := ex.prepare(options, journalPrefix(options))
	if err != nil {
		return "", err
	}

	switch options.Format {
	case FormatCSV:
		rows := make([][]string, 0, len(filtered))
		for _, e := range filtered {
			rows = append(rows, journalRow(e))
		}
		err = writeCSV(outputPath, JournalHeaders(), rows)
	case FormatJSON:
		err = writeJSON(outputPath, struct {
			ExportTime time.Time               `json:"export_time"`
			EntryCount int                     `json:"entry_count"`
			Summary    JournalSummary          `json:"summary"`
			Entries    []*storage.JournalEntry `json:"entries"`
		}{
			ExportTime: time.Now().UTC(),
			EntryCount: len(filtered),
			Summary:    Summarize(filtered),
			Entries:    filtered,
		})
	}
	if err != nil {
		return "", err
	}

	ex.logger.Info("Journal exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

// ExportSnapshots writes market snapshots and returns the file path.
func (ex *Exporter) ExportSnapshots(snapshots []*service.MarketSnapshot, options ExportOptions) (string, error) {
	if len(snapshots) == 0 {
		return "", fmt.Errorf("no markets to export")
	}
	outputPath, err := ex.prepare(options, "markets")
	if err != nil {
		return "", err
	}

	switch options.Format {
	case FormatCSV:
		rows := make([][]string, 0, len(snapshots))
		for _, s := range snapshots {
			rows = append(rows, snapshotRow(s))
		}
		err = writeCSV(outputPath, SnapshotHeaders(), rows)
	case FormatJSON:
		err = writeJSON(outputPath, struct {
			ExportTime  time.Time                 `json:"export_time"`
			MarketCount int                       `json:"market_count"`
			Markets     []*service.MarketSnapshot `json:"markets"`
		}{
			ExportTime:  time.Now().UTC(),
			MarketCount: len(snapshots),
			Markets:     snapshots,
		})
	}
	if err != nil {
		return "", err
	}

	ex.logger.Info("Markets exported",
		zap.String("file", outputPath),
		zap.Int("count", len(snapshots)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

func (ex *Exporter) prepare(options ExportOptions, prefix string) (string, error) {
	if options.Format != FormatCSV && options.Format != FormatJSON {
		return "", fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := fmt.Sprintf("%s_%s.%s", prefix, time.Now().Format("20060102_150405.000"), options.Format)
	return filepath.Join(options.OutputDir, filename), nil
}

func filterEntries(entries []*storage.JournalEntry, options ExportOptions) []*storage.JournalEntry {
	filter := storage.JournalFilter{Token: options.Token, Operation: options.Operation, Since: options.StartTime}

	var filtered []*storage.JournalEntry
	for _, e := range entries {
		if !filter.Match(e) {
			continue
		}
		if options.EndTime != 0 && e.Timestamp >= options.EndTime {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func journalPrefix(options ExportOptions) string {
	prefix := "journal_all"
	if options.Operation != "" {
		prefix = "journal_" + options.Operation
	}
	if !options.Token.IsZero() {
		prefix += "_" + options.Token.String()[:8]
	}
	return prefix
}

func writeCSV(outputPath string, header []string, rows [][]string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

func writeJSON(outputPath string, v any) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// JournalSummary aggregates journal entries.
type JournalSummary struct {
	TotalEntries   int    `json:"total_entries"`
	Launches       int    `json:"launches"`
	BuyCount       int    `json:"buy_count"`
	SellCount      int    `json:"sell_count"`
	BurnCount      int    `json:"burn_count"`
	UniqueTokens   int    `json:"unique_tokens"`
	BuyVolume      uint64 `json:"buy_volume"`
	SellVolume     uint64 `json:"sell_volume"`
	FeesCharged    uint64 `json:"fees_charged"`
	FeesWithdrawn  uint64 `json:"fees_withdrawn"`
	TokensBurned   uint64 `json:"tokens_burned"`
	VestingClaimed uint64 `json:"vesting_claimed"`
	VestingRevoked uint64 `json:"vesting_revoked"`
	FirstTimestamp int64  `json:"first_timestamp"`
	LastTimestamp  int64  `json:"last_timestamp"`
}

// Summarize aggregates entries, which must be in time order.
func Summarize(entries []*storage.JournalEntry) JournalSummary {
	summary := JournalSummary{TotalEntries: len(entries)}
	if len(entries) == 0 {
		return summary
	}
	summary.FirstTimestamp = entries[0].Timestamp
	summary.LastTimestamp = entries[len(entries)-1].Timestamp

	tokens := make(map[solana.PublicKey]bool)
	for _, e := range entries {
		if !e.Token.IsZero() {
			tokens[e.Token] = true
		}
		summary.FeesCharged += e.Fee

		switch e.Operation {
		case service.OpLaunch:
			summary.Launches++
		case service.OpBuy:
			summary.BuyCount++
			summary.BuyVolume += e.SolAmount
		case service.OpSell:
			summary.SellCount++
			summary.SellVolume += e.SolAmount
		case service.OpBurnForAccess:
			summary.BurnCount++
			summary.TokensBurned += e.TokenAmount
		case service.OpWithdrawPlatformFees, service.OpWithdrawCreatorFees:
			summary.FeesWithdrawn += e.SolAmount
		case service.OpClaimVested:
			summary.VestingClaimed += e.TokenAmount
		case service.OpRevokeVesting:
			summary.VestingRevoked += e.TokenAmount
		}
	}
	summary.UniqueTokens = len(tokens)
	return summary
}

// DailyReport is a one-day journal summary with an hourly breakdown.
type DailyReport struct {
	Date            time.Time               `json:"date"`
	EntryCount      int                     `json:"entry_count"`
	Summary         JournalSummary          `json:"summary"`
	HourlyBreakdown []HourlyStats           `json:"hourly_breakdown"`
	Entries         []*storage.JournalEntry `json:"entries"`
}

// HourlyStats represents trading statistics for an hour
type HourlyStats struct {
	Hour       int    `json:"hour"`
	EntryCount int    `json:"entry_count"`
	BuyCount   int    `json:"buy_count"`
	SellCount  int    `json:"sell_count"`
	Volume     uint64 `json:"volume"`
	Fees       uint64 `json:"fees"`
}

// ExportDailyReport writes the UTC day containing date. It returns an empty
// path when the day has no entries.
func (ex *Exporter) ExportDailyReport(entries []*storage.JournalEntry, date time.Time, outputDir string) (string, error) {
	date = date.UTC()
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	filtered := filterEntries(entries, ExportOptions{
		StartTime: startOfDay.Unix(),
		EndTime:   startOfDay.Add(24 * time.Hour).Unix(),
	})
	if len(filtered) == 0 {
		ex.logger.Info("No journal entries for daily report", zap.Time("date", startOfDay))
		return "", nil
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp < filtered[j].Timestamp
	})

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, fmt.Sprintf("daily_report_%s.json", startOfDay.Format("20060102")))

	report := DailyReport{
		Date:            startOfDay,
		EntryCount:      len(filtered),
		Summary:         Summarize(filtered),
		HourlyBreakdown: hourlyBreakdown(filtered),
		Entries:         filtered,
	}
	if err := writeJSON(outputPath, report); err != nil {
		return "", err
	}

	ex.logger.Info("Daily report exported",
		zap.String("file", outputPath),
		zap.Time("date", startOfDay),
		zap.Int("entries", len(filtered)))
	return outputPath, nil
}

func hourlyBreakdown(entries []*storage.JournalEntry) []HourlyStats {
	hourly := make(map[int]*HourlyStats)
	for _, e := range entries {
		hour := time.Unix(e.Timestamp, 0).UTC().Hour()
		stats, ok := hourly[hour]
		if !ok {
			stats = &HourlyStats{Hour: hour}
			hourly[hour] = stats
		}
		stats.EntryCount++
		stats.Fees += e.Fee

		switch e.Operation {
		case service.OpBuy:
			stats.BuyCount++
			stats.Volume += e.SolAmount
		case service.OpSell:
			stats.SellCount++
			stats.Volume += e.SolAmount
		}
	}

	var breakdown []HourlyStats
	for hour := 0; hour < 24; hour++ {
		if stats, ok := hourly[hour]; ok {
			breakdown = append(breakdown, *stats)
		}
	}
	return breakdown
}
