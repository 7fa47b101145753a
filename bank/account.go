package bank

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3tea/tidelog/eventstore"
)

// Account is the state an account's event history folds into. It is a read
// projection local to a decision; no account row exists anywhere.
type Account struct {
	ID       string          `json:"id"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	OpenedAt time.Time       `json:"opened_at"`
}

// foldAccount replays an account's history. Returns nil when no
// BankAccountOpened event is present.
func foldAccount(accountID string, events []eventstore.StoredEvent) (*Account, error) {
	var account *Account

	for _, e := range events {
		switch e.Type {
		case EventTypeAccountOpened:
			var opened AccountOpened
			if err := fromPayload(e.Payload, &opened); err != nil {
				return nil, fmt.Errorf("event %d: %w", e.SequenceNumber, err)
			}
			if opened.AccountID != accountID {
				continue
			}
			account = &Account{
				ID:       opened.AccountID,
				Currency: opened.Currency,
				Balance:  decimal.Zero,
				OpenedAt: e.OccurredAt,
			}

		case EventTypeMoneyDeposited:
			var deposited MoneyDeposited
			if err := fromPayload(e.Payload, &deposited); err != nil {
				return nil, fmt.Errorf("event %d: %w", e.SequenceNumber, err)
			}
			if account == nil || deposited.AccountID != accountID {
				continue
			}
			account.Balance = account.Balance.Add(deposited.Amount)

		case EventTypeMoneyWithdrawn:
			var withdrawn MoneyWithdrawn
			if err := fromPayload(e.Payload, &withdrawn); err != nil {
				return nil, fmt.Errorf("event %d: %w", e.SequenceNumber, err)
			}
			if account == nil || withdrawn.AccountID != accountID {
				continue
			}
			account.Balance = account.Balance.Sub(withdrawn.Amount)

		case EventTypeMoneyTransferred:
			var transferred MoneyTransferred
			if err := fromPayload(e.Payload, &transferred); err != nil {
				return nil, fmt.Errorf("event %d: %w", e.SequenceNumber, err)
			}
			if account == nil {
				continue
			}
			if transferred.FromAccountID == accountID {
				account.Balance = account.Balance.Sub(transferred.Amount)
			}
			if transferred.ToAccountID == accountID {
				account.Balance = account.Balance.Add(transferred.Amount)
			}
		}
	}

	return account, nil
}

// accountFilter scopes every event that can affect the account's balance,
// whichever payload field carries the account id.
func accountFilter(accountID string) eventstore.Filter {
	return eventstore.MustNewFilter(accountEventTypes,
		map[string]any{"accountId": accountID},
		map[string]any{"fromAccountId": accountID},
		map[string]any{"toAccountId": accountID},
	)
}
