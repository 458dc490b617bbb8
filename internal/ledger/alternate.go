package ledger

import (
	"context"
	"fmt"
	"time"
)

// USDCode is the alternate valuation currency.
const USDCode = "USD"

// CurrencyConverter is the slice of the fx converter the alternates need.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount float64, from, to string, companyID int64, date time.Time) (float64, error)
	Rate(ctx context.Context, from, to string, companyID int64, date time.Time) (float64, error)
}

// AlternateComputer fills the USD alternate fields of monetary lines.
type AlternateComputer struct {
	converter CurrencyConverter
	now       func() time.Time
}

// NewAlternateComputer constructs the computer.
func NewAlternateComputer(converter CurrencyConverter) *AlternateComputer {
	return &AlternateComputer{converter: converter, now: time.Now}
}

// Compute values the line in USD at its effective date and derives RateUsed
// as local units per one USD. A company already booking in USD copies the
// amounts through with rate 1.
func (c *AlternateComputer) Compute(ctx context.Context, line *MonetaryLine, companyID int64) error {
	if line.CompanyCurrency == USDCode {
		line.DebitAlt = line.Debit
		line.CreditAlt = line.Credit
		line.RateUsed = 1.0
		return nil
	}

	date := line.EffectiveDate(c.now())

	debitAlt, err := c.converter.Convert(ctx, line.Debit, line.CompanyCurrency, USDCode, companyID, date)
	if err != nil {
		return fmt.Errorf("ledger: convert debit: %w", err)
	}
	creditAlt, err := c.converter.Convert(ctx, line.Credit, line.CompanyCurrency, USDCode, companyID, date)
	if err != nil {
		return fmt.Errorf("ledger: convert credit: %w", err)
	}

	line.DebitAlt = debitAlt
	line.CreditAlt = creditAlt

	switch {
	case line.Debit > 0 && debitAlt != 0:
		line.RateUsed = line.Debit / debitAlt
	case line.Credit > 0 && creditAlt != 0:
		line.RateUsed = line.Credit / creditAlt
	default:
		rate, err := c.converter.Rate(ctx, line.CompanyCurrency, USDCode, companyID, date)
		if err != nil {
			return fmt.Errorf("ledger: conversion rate: %w", err)
		}
		if rate != 0 {
			line.RateUsed = 1 / rate
		} else {
			line.RateUsed = 0
		}
	}
	return nil
}

// ComputeAll fills every line, stopping at the first failure.
func (c *AlternateComputer) ComputeAll(ctx context.Context, lines []MonetaryLine, companyID int64) error {
	for i := range lines {
		if err := c.Compute(ctx, &lines[i], companyID); err != nil {
			return err
		}
	}
	return nil
}
