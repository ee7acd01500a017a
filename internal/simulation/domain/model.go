package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AttemptStatus is the lifecycle tag of one computed offer.
type AttemptStatus string

const (
	StatusDraft      AttemptStatus = "draft"
	StatusApproved   AttemptStatus = "approved"
	StatusRejected   AttemptStatus = "rejected"
	StatusSuperseded AttemptStatus = "superseded"
)

// BankEntry is one loan to be paid off, with the release amount already
// derived from the bank/term coefficient table upstream. The engine
// consumes release amounts as given; it never inverts coefficients.
type BankEntry struct {
	BankCode    string          `json:"bank_code"`
	Balance     decimal.Decimal `json:"balance"`
	Installment decimal.Decimal `json:"installment"`
	Released    decimal.Decimal `json:"released"`
}

// Totals is the derived monetary summary of an attempt. Immutable once
// computed.
type Totals struct {
	InstallmentTotal     decimal.Decimal `json:"installment_total"`
	BalanceTotal         decimal.Decimal `json:"balance_total"`
	ReleasedTotal        decimal.Decimal `json:"released_total"`
	MandatoryInsurance   decimal.Decimal `json:"mandatory_insurance"`
	FinancedTotal        decimal.Decimal `json:"financed_total"`
	NetAmount            decimal.Decimal `json:"net_amount"`
	ConsultancyCost      decimal.Decimal `json:"consultancy_cost"`
	ConsultancyCostNet   decimal.Decimal `json:"consultancy_cost_net"`
	ClientReleasedAmount decimal.Decimal `json:"client_released_amount"`
}

// SimulationAttempt is one computed offer for a case. Attempts are an
// append-only collection per case; the case points at the current one.
type SimulationAttempt struct {
	ID                 uuid.UUID       `json:"id"`
	CaseID             uuid.UUID       `json:"case_id"`
	Entries            []BankEntry     `json:"entries"`
	TermMonths         int             `json:"term_months"`
	Insurance          decimal.Decimal `json:"insurance"`
	ConsultancyPercent decimal.Decimal `json:"consultancy_percent"`
	Totals             Totals          `json:"totals"`
	Status             AttemptStatus   `json:"status"`
	RejectReason       string          `json:"reject_reason,omitempty"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// EverApproved reports whether the attempt was approved at some point,
// even if a later attempt superseded it.
func (a *SimulationAttempt) EverApproved() bool {
	return a.Status == StatusApproved || a.ApprovedAt != nil
}
