package events

import (
	"github.com/shopspring/decimal"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// AccountCreatedData is emitted the first time a user is seen.
type AccountCreatedData struct {
	Currency string `json:"currency"`
}

func (d *AccountCreatedData) EventType() EventType { return AccountCreated }

// OnboardingSavedData carries the starting balance set at onboarding.
type OnboardingSavedData struct {
	StartingBalance decimal.Decimal `json:"starting_balance"`
	Currency        string          `json:"currency"`
}

func (d *OnboardingSavedData) EventType() EventType { return OnboardingSaved }

// AccountResetData describes a purge of the journal.
type AccountResetData struct {
	StartingBalance  decimal.Decimal `json:"starting_balance"`
	Currency         string          `json:"currency"`
	TradesDeleted    int64           `json:"trades_deleted"`
	CashflowsDeleted int64           `json:"cashflows_deleted"`
}

func (d *AccountResetData) EventType() EventType { return AccountReset }

// BalanceRepairedData records a balance rewritten to its derived value.
type BalanceRepairedData struct {
	Previous decimal.Decimal `json:"previous"`
	Repaired decimal.Decimal `json:"repaired"`
}

func (d *BalanceRepairedData) EventType() EventType { return BalanceRepaired }

// ExpensesChangedData carries the new accumulator value for a month.
type ExpensesChangedData struct {
	Month string          `json:"month"`
	Total decimal.Decimal `json:"total"`
}

func (d *ExpensesChangedData) EventType() EventType { return ExpensesChanged }

// TradeChangedData is shared by every trade event. Delta is the amount the
// mutation applied to the balance.
type TradeChangedData struct {
	Type    EventType       `json:"-"`
	TradeID string          `json:"trade_id"`
	Symbol  string          `json:"symbol"`
	Status  string          `json:"status"`
	Delta   decimal.Decimal `json:"delta"`
	Balance decimal.Decimal `json:"balance"`
}

func (d *TradeChangedData) EventType() EventType { return d.Type }

// CashflowChangedData is shared by cashflow add and delete events.
type CashflowChangedData struct {
	Type       EventType       `json:"-"`
	CashflowID string          `json:"cashflow_id"`
	Amount     decimal.Decimal `json:"amount"`
	Balance    decimal.Decimal `json:"balance"`
}

func (d *CashflowChangedData) EventType() EventType { return d.Type }

// BackupCompletedData describes a finished backup run.
type BackupCompletedData struct {
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
	Uploaded  bool   `json:"uploaded"`
}

func (d *BackupCompletedData) EventType() EventType { return BackupCompleted }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }
