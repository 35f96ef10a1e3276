package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/scenario"
	"github.com/rovshanmuradov/launchpad/internal/service"
)

var (
	Cyan   = lipgloss.Color("#00E5FF")
	Green  = lipgloss.Color("#2AFFAA")
	Red    = lipgloss.Color("#FF5555")
	Yellow = lipgloss.Color("#FFB500")
	Muted  = lipgloss.Color("#6C7280")
)

// ReportStyles styles the end-of-run summary.
type ReportStyles struct {
	Container lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	OK        lipgloss.Style
	Expected  lipgloss.Style
	Failed    lipgloss.Style
	Muted     lipgloss.Style
}

func NewReportStyles() ReportStyles {
	return ReportStyles{
		Container: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Cyan).
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true).
			MarginBottom(1),

		Header: lipgloss.NewStyle().
			Bold(true).
			Underline(true),

		OK:       lipgloss.NewStyle().Foreground(Green).Bold(true),
		Expected: lipgloss.NewStyle().Foreground(Yellow),
		Failed:   lipgloss.NewStyle().Foreground(Red).Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(Muted),
	}
}

// PlainReportStyles renders without colors or borders.
func PlainReportStyles() ReportStyles {
	plain := lipgloss.NewStyle()
	return ReportStyles{
		Container: plain, Title: plain, Header: plain,
		OK: plain, Expected: plain, Failed: plain, Muted: plain,
	}
}

const stepRowFormat = "%-28s %-22s %-10s %-8s %8s %18s %18s"

// RenderReport formats step results followed by the market table.
func RenderReport(report *scenario.Report, snapshots []*service.MarketSnapshot, styles ReportStyles) string {
	var b strings.Builder

	b.WriteString(styles.Title.Render(fmt.Sprintf("Scenario %q: %d steps, %d failed",
		report.Scenario, len(report.Results), len(report.Failed()))))
	b.WriteString("\n")
	b.WriteString(styles.Header.Render(fmt.Sprintf("%-5s"+stepRowFormat, "", "step", "operation", "wallet", "token", "at", "sol", "tokens")))
	b.WriteString("\n")

	for _, res := range report.Results {
		b.WriteString(statusCell(res, styles))
		b.WriteString(fmt.Sprintf(stepRowFormat, truncate(res.Step, 28), res.Operation, res.Wallet, res.Token,
			fmt.Sprintf("+%d", res.At-report.Start), formatLamports(res.SolAmount), formatUnits(res.TokenAmount)))
		b.WriteString("\n")
		if res.Err != nil {
			b.WriteString(styles.Muted.Render("     " + res.Err.Error()))
			b.WriteString("\n")
		}
	}

	if len(snapshots) > 0 {
		names := make(map[solana.PublicKey]string, len(report.Tokens))
		for name, key := range report.Tokens {
			names[key] = name
		}

		b.WriteString("\n")
		b.WriteString(styles.Header.Render(fmt.Sprintf("%-8s %-10s %18s %18s %14s %9s",
			"token", "name", "real sol", "market cap", "price", "progress")))
		b.WriteString("\n")
		for _, s := range snapshots {
			b.WriteString(fmt.Sprintf("%-8s %-10s %18s %18s %14.6f %8.2f%%",
				s.Token.String()[:8], names[s.Token],
				formatLamports(s.RealSolReserves), formatLamports(s.MarketCap), s.SpotPrice, s.CurveProgress*100))
			b.WriteString("\n")
		}
	}

	return styles.Container.Render(strings.TrimRight(b.String(), "\n"))
}

// statusCell pads outside the styled text so escape codes do not shift columns.
func statusCell(res scenario.Result, styles ReportStyles) string {
	switch {
	case res.Expected:
		return styles.Expected.Render("exp") + "  "
	case !res.OK():
		return styles.Failed.Render("FAIL") + " "
	default:
		return styles.OK.Render("ok") + "   "
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// formatLamports renders lamports as SOL with nine decimals.
func formatLamports(v uint64) string {
	return fmt.Sprintf("%d.%09d", v/1_000_000_000, v%1_000_000_000)
}

// formatUnits renders base units as whole tokens with six decimals.
func formatUnits(v uint64) string {
	return fmt.Sprintf("%d.%06d", v/1_000_000, v%1_000_000)
}
