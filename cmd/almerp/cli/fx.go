package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alm-erp/alm-erp/internal/fx"
)

// RateService is the slice of the fx service the operational helpers need.
type RateService interface {
	RefreshAll(ctx context.Context) (fx.RefreshSummary, error)
	RatesAt(ctx context.Context, companyID int64, date time.Time) ([]fx.ExchangeRate, error)
}

// FXOpsCLI offers operational helpers for managing exchange rates.
type FXOpsCLI struct {
	service RateService
}

// NewFXOpsCLI constructs a new helper instance.
func NewFXOpsCLI(service RateService) *FXOpsCLI {
	return &FXOpsCLI{service: service}
}

// FXRefreshOptions defines available flags for the refresh-rates command.
type FXRefreshOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// RefreshCommand runs a refresh immediately and prints the per-company
// outcome. Exit code 10 marks a run where at least one company failed.
func (c *FXOpsCLI) RefreshCommand(ctx context.Context, opts FXRefreshOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	summary, err := c.service.RefreshAll(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "refresh-rates: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "refresh-rates: encode json: %v\n", err)
			return 1
		}
	} else {
		for _, outcome := range summary.Outcomes {
			switch {
			case outcome.Error != "":
				_, _ = fmt.Fprintf(opts.Stdout, " - %s: failed: %s\n", outcome.CompanyName, outcome.Error)
			case outcome.Skipped:
				_, _ = fmt.Fprintf(opts.Stdout, " - %s: skipped\n", outcome.CompanyName)
			default:
				_, _ = fmt.Fprintf(opts.Stdout, " - %s: %d created, %d updated\n", outcome.CompanyName, outcome.Created, outcome.Updated)
			}
		}
	}
	if summary.Failed() > 0 {
		return 10
	}
	return 0
}

// FXCoverageOptions defines available flags for the rates-coverage command.
type FXCoverageOptions struct {
	CompanyID  int64
	Days       int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// FXCoverageSummary describes the JSON response for rates-coverage.
type FXCoverageSummary struct {
	OK      bool     `json:"ok"`
	Checked int      `json:"checked_days"`
	Gaps    []string `json:"gaps"`
}

// CoverageCommand checks that every business day in the trailing window has
// stored rates. Weekend days count as covered since the carry-forward policy
// may legitimately skip them. Exit code 10 marks detected gaps.
func (c *FXOpsCLI) CoverageCommand(ctx context.Context, opts FXCoverageOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.CompanyID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "rates-coverage: --company is required and must be positive")
		return 1
	}
	days := opts.Days
	if days <= 0 {
		days = 7
	}

	summary := FXCoverageSummary{OK: true}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, -i)
		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			continue
		}
		summary.Checked++
		rates, err := c.service.RatesAt(ctx, opts.CompanyID, date)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "rates-coverage: %v\n", err)
			return 1
		}
		if len(rates) == 0 {
			summary.OK = false
			summary.Gaps = append(summary.Gaps, date.Format("2006-01-02"))
		}
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "rates-coverage: encode json: %v\n", err)
			return 1
		}
	} else if summary.OK {
		_, _ = fmt.Fprintf(opts.Stdout, "All %d business days covered.\n", summary.Checked)
	} else {
		_, _ = fmt.Fprintf(opts.Stdout, "%d gap(s) detected:\n", len(summary.Gaps))
		for _, gap := range summary.Gaps {
			_, _ = fmt.Fprintf(opts.Stdout, " - %s\n", gap)
		}
	}
	if !summary.OK {
		return 10
	}
	return 0
}
