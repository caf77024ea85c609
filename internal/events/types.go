// Package events provides the in-process event bus used to notify live
// subscribers of committed ledger mutations.
package events

// EventType identifies what happened.
type EventType string

const (
	AccountCreated  EventType = "ACCOUNT_CREATED"
	OnboardingSaved EventType = "ONBOARDING_SAVED"
	AccountReset    EventType = "ACCOUNT_RESET"
	BalanceRepaired EventType = "BALANCE_REPAIRED"
	ExpensesChanged EventType = "EXPENSES_CHANGED"

	TradeOpened  EventType = "TRADE_OPENED"
	TradeClosed  EventType = "TRADE_CLOSED"
	TradeEdited  EventType = "TRADE_EDITED"
	TradeDeleted EventType = "TRADE_DELETED"

	CashflowAdded   EventType = "CASHFLOW_ADDED"
	CashflowDeleted EventType = "CASHFLOW_DELETED"

	BackupCompleted EventType = "BACKUP_COMPLETED"
	ErrorOccurred   EventType = "ERROR_OCCURRED"
)

// LedgerTypes are the event types that change a user's journal snapshot.
var LedgerTypes = []EventType{
	AccountCreated, OnboardingSaved, AccountReset, BalanceRepaired, ExpensesChanged,
	TradeOpened, TradeClosed, TradeEdited, TradeDeleted,
	CashflowAdded, CashflowDeleted,
}
