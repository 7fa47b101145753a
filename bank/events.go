package bank

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Event type tags. The tag is the discriminator readers dispatch on when
// events come back from the store as generic records.
const (
	EventTypeAccountOpened    = "BankAccountOpened"
	EventTypeMoneyDeposited   = "MoneyDeposited"
	EventTypeMoneyWithdrawn   = "MoneyWithdrawn"
	EventTypeMoneyTransferred = "MoneyTransferred"
)

// accountEventTypes is every tag that can affect an account's state.
var accountEventTypes = []string{
	EventTypeAccountOpened,
	EventTypeMoneyDeposited,
	EventTypeMoneyWithdrawn,
	EventTypeMoneyTransferred,
}

type AccountOpened struct {
	AccountID string `json:"accountId"`
	Currency  string `json:"currency"`
}

type MoneyDeposited struct {
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
}

type MoneyWithdrawn struct {
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
}

type MoneyTransferred struct {
	TransferID    string          `json:"transferId"`
	FromAccountID string          `json:"fromAccountId"`
	ToAccountID   string          `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
}

// toPayload flattens a typed event body into the store's generic payload.
func toPayload(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

func fromPayload(payload map[string]any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
