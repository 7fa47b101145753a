// Package bank is the sample domain shipped with the store: feature slices
// that open accounts and move money by reading a filtered view of the log,
// deciding, and conditionally appending. There are no aggregates and no
// account rows; each slice's filter defines exactly the history its decision
// depends on.
package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/web3tea/tidelog/eventstore"
)

// Domain errors. Store errors are mapped onto these at the slice boundary;
// the store itself never speaks this vocabulary.
var (
	ErrInvalidAccountID    = errors.New("bank: invalid account id")
	ErrAccountExists       = errors.New("bank: account already exists")
	ErrAccountNotFound     = errors.New("bank: account not found")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrInsufficientFunds   = errors.New("bank: insufficient funds")
	ErrUnsupportedCurrency = errors.New("bank: unsupported currency")
	ErrCurrencyMismatch    = errors.New("bank: accounts use different currencies")
	ErrSameAccount         = errors.New("bank: cannot transfer to the same account")
	ErrDuplicateTransfer   = errors.New("bank: transfer id already used")
)

var supportedCurrencies = map[string]bool{
	"EUR": true,
	"USD": true,
	"GBP": true,
	"DKK": true,
}

// maxRetries bounds how often a slice re-reads its context after losing an
// append race before giving up.
const maxRetries = 3

type Service struct {
	store  eventstore.Store
	logger eventstore.Logger
}

func NewService(store eventstore.Store, logger eventstore.Logger) *Service {
	if logger == nil {
		logger = eventstore.NoopLogger{}
	}
	return &Service{store: store, logger: logger}
}

// OpenAccount appends a BankAccountOpened event unless the account id is
// already taken.
func (s *Service) OpenAccount(ctx context.Context, accountID, currency string) error {
	if accountID == "" {
		return ErrInvalidAccountID
	}
	if !supportedCurrencies[currency] {
		return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}

	filter := eventstore.MustNewFilter(
		[]string{EventTypeAccountOpened},
		map[string]any{"accountId": accountID},
	)

	return s.retry(ctx, "open account", func() error {
		result, err := s.store.Query(ctx, filter)
		if err != nil {
			return err
		}
		if len(result.Events) > 0 {
			return fmt.Errorf("%w: %s", ErrAccountExists, accountID)
		}

		payload, err := toPayload(AccountOpened{AccountID: accountID, Currency: currency})
		if err != nil {
			return err
		}
		return s.store.Append(ctx, filter, result.MaxSequenceNumber, eventstore.Event{
			Type:    EventTypeAccountOpened,
			Payload: payload,
		})
	})
}

// Deposit adds money to an account.
func (s *Service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	filter := accountFilter(accountID)
	return s.retry(ctx, "deposit", func() error {
		result, err := s.store.Query(ctx, filter)
		if err != nil {
			return err
		}
		account, err := foldAccount(accountID, result.Events)
		if err != nil {
			return err
		}
		if account == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}

		payload, err := toPayload(MoneyDeposited{AccountID: accountID, Amount: amount})
		if err != nil {
			return err
		}
		return s.store.Append(ctx, filter, result.MaxSequenceNumber, eventstore.Event{
			Type:    EventTypeMoneyDeposited,
			Payload: payload,
		})
	})
}

// Withdraw removes money from an account, refusing overdrafts.
func (s *Service) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	filter := accountFilter(accountID)
	return s.retry(ctx, "withdraw", func() error {
		result, err := s.store.Query(ctx, filter)
		if err != nil {
			return err
		}
		account, err := foldAccount(accountID, result.Events)
		if err != nil {
			return err
		}
		if account == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		if account.Balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, requested %s",
				ErrInsufficientFunds, account.Balance, amount)
		}

		payload, err := toPayload(MoneyWithdrawn{AccountID: accountID, Amount: amount})
		if err != nil {
			return err
		}
		return s.store.Append(ctx, filter, result.MaxSequenceNumber, eventstore.Event{
			Type:    EventTypeMoneyWithdrawn,
			Payload: payload,
		})
	})
}

// Transfer moves money between two accounts and returns the transfer id.
func (s *Service) Transfer(ctx context.Context, fromAccountID, toAccountID string, amount decimal.Decimal) (string, error) {
	transferID, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return transferID.String(), s.TransferWithID(ctx, transferID.String(), fromAccountID, toAccountID, amount)
}

// TransferWithID is Transfer with a caller-chosen id, for idempotent retries
// from the outside. A reused id fails with ErrDuplicateTransfer.
//
// The decision's filter spans both accounts plus the transfer id, and the
// append is conditional on that whole context: a concurrent withdrawal on
// either side, or the same transfer id landing first, forces a re-read.
func (s *Service) TransferWithID(ctx context.Context, transferID, fromAccountID, toAccountID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if fromAccountID == toAccountID {
		return fmt.Errorf("%w: %s", ErrSameAccount, fromAccountID)
	}

	filter := eventstore.MustNewFilter(accountEventTypes).
		WithPayloadPredicate("accountId", fromAccountID).
		WithPayloadPredicate("fromAccountId", fromAccountID).
		WithPayloadPredicate("toAccountId", fromAccountID).
		WithPayloadPredicate("accountId", toAccountID).
		WithPayloadPredicate("fromAccountId", toAccountID).
		WithPayloadPredicate("toAccountId", toAccountID).
		WithPayloadPredicate("transferId", transferID)

	return s.retry(ctx, "transfer", func() error {
		result, err := s.store.Query(ctx, filter)
		if err != nil {
			return err
		}

		for _, e := range result.Events {
			if e.Type != EventTypeMoneyTransferred {
				continue
			}
			var transferred MoneyTransferred
			if err := fromPayload(e.Payload, &transferred); err != nil {
				return err
			}
			if transferred.TransferID == transferID {
				return fmt.Errorf("%w: %s", ErrDuplicateTransfer, transferID)
			}
		}

		from, err := foldAccount(fromAccountID, result.Events)
		if err != nil {
			return err
		}
		to, err := foldAccount(toAccountID, result.Events)
		if err != nil {
			return err
		}
		if from == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, fromAccountID)
		}
		if to == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, toAccountID)
		}
		if from.Currency != to.Currency {
			return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, from.Currency, to.Currency)
		}
		if from.Balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, requested %s",
				ErrInsufficientFunds, from.Balance, amount)
		}

		payload, err := toPayload(MoneyTransferred{
			TransferID:    transferID,
			FromAccountID: fromAccountID,
			ToAccountID:   toAccountID,
			Amount:        amount,
		})
		if err != nil {
			return err
		}
		return s.store.Append(ctx, filter, result.MaxSequenceNumber, eventstore.Event{
			Type:    EventTypeMoneyTransferred,
			Payload: payload,
		})
	})
}

// GetAccount folds and returns the account's current state.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	result, err := s.store.Query(ctx, accountFilter(accountID))
	if err != nil {
		return nil, err
	}
	account, err := foldAccount(accountID, result.Events)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return account, nil
}

// retry re-runs a decision after a lost append race. Every attempt re-reads
// the context through the slice's filter, so the decision is always made on
// fresh state.
func (s *Service) retry(ctx context.Context, op string, decide func() error) error {
	for attempt := 0; ; attempt++ {
		err := decide()
		if !errors.Is(err, eventstore.ErrConcurrencyConflict) || attempt == maxRetries {
			return err
		}
		s.logger.Debugf("%s lost an append race, retrying (%d/%d)", op, attempt+1, maxRetries)
	}
}
