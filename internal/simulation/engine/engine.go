// Package engine computes the consolidated totals of a restructuring
// offer. Compute is a pure function: no clock, no storage, no hidden
// state, so identical inputs always produce identical totals.
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/credfluxo/restructure-backend/internal/simulation/domain"
)

// consultancy cost is invoiced net of a fixed 14% tax share.
var netOfTaxFactor = decimal.New(86, -2)

// Compute validates the inputs and derives the Totals for one offer.
//
// Intermediate sums keep full precision; only the two consultancy
// figures are rounded, half-up at 2 decimal places, so repeated sums do
// not accumulate rounding drift.
func Compute(entries []domain.BankEntry, termMonths int, insurance, consultancyPercent decimal.Decimal) (domain.Totals, error) {
	if err := validate(entries, termMonths, insurance, consultancyPercent); err != nil {
		return domain.Totals{}, err
	}

	var installmentTotal, balanceTotal, releasedTotal decimal.Decimal
	for _, e := range entries {
		installmentTotal = installmentTotal.Add(e.Installment)
		balanceTotal = balanceTotal.Add(e.Balance)
		releasedTotal = releasedTotal.Add(e.Released)
	}

	financedTotal := releasedTotal.Add(insurance)

	// Per-bank coefficients are already baked into each entry's release
	// amount upstream, so the financed total is the net amount.
	netAmount := financedTotal

	// decimal.Round is half-away-from-zero, which is half-up for the
	// non-negative amounts validated above.
	consultancyCost := consultancyPercent.Mul(netAmount).Round(2)
	consultancyCostNet := consultancyCost.Mul(netOfTaxFactor).Round(2)

	clientReleased := netAmount.Sub(consultancyCost)
	if clientReleased.IsNegative() {
		return domain.Totals{}, fmt.Errorf("%w: consultancy cost %s exceeds net amount %s",
			domain.ErrInvalidInput, consultancyCost, netAmount)
	}

	return domain.Totals{
		InstallmentTotal:     installmentTotal,
		BalanceTotal:         balanceTotal,
		ReleasedTotal:        releasedTotal,
		MandatoryInsurance:   insurance,
		FinancedTotal:        financedTotal,
		NetAmount:            netAmount,
		ConsultancyCost:      consultancyCost,
		ConsultancyCostNet:   consultancyCostNet,
		ClientReleasedAmount: clientReleased,
	}, nil
}

func validate(entries []domain.BankEntry, termMonths int, insurance, consultancyPercent decimal.Decimal) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: at least one bank entry is required", domain.ErrInvalidInput)
	}
	if termMonths <= 0 {
		return fmt.Errorf("%w: term_months must be positive, got %d", domain.ErrInvalidInput, termMonths)
	}
	if insurance.IsNegative() {
		return fmt.Errorf("%w: insurance must not be negative", domain.ErrInvalidInput)
	}
	if consultancyPercent.IsNegative() || consultancyPercent.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: consultancy_percent must be within [0, 1], got %s",
			domain.ErrInvalidInput, consultancyPercent)
	}
	for i, e := range entries {
		if e.Balance.IsNegative() || e.Installment.IsNegative() || e.Released.IsNegative() {
			return fmt.Errorf("%w: entry %d (%s) has a negative monetary field",
				domain.ErrInvalidInput, i, e.BankCode)
		}
	}
	return nil
}
