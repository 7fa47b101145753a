package bank_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/web3tea/tidelog/bank"
	"github.com/web3tea/tidelog/eventstore"
	"github.com/web3tea/tidelog/memory"
)

func newService(t *testing.T) (*bank.Service, eventstore.Store) {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })
	return bank.NewService(store, nil), store
}

func TestOpenAccount(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, service.OpenAccount(ctx, "alice", "EUR"))

	t.Run("duplicate id", func(t *testing.T) {
		assert.ErrorIs(t, service.OpenAccount(ctx, "alice", "EUR"), bank.ErrAccountExists)
	})

	t.Run("unsupported currency", func(t *testing.T) {
		assert.ErrorIs(t, service.OpenAccount(ctx, "carol", "XXX"), bank.ErrUnsupportedCurrency)
	})

	account, err := service.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "EUR", account.Currency)
	assert.True(t, account.Balance.IsZero())
}

func TestDepositAndWithdraw(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, service.OpenAccount(ctx, "alice", "EUR"))
	require.NoError(t, service.Deposit(ctx, "alice", decimal.NewFromInt(100)))
	require.NoError(t, service.Withdraw(ctx, "alice", decimal.RequireFromString("12.50")))

	account, err := service.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "87.5", account.Balance.String())

	t.Run("unknown account", func(t *testing.T) {
		assert.ErrorIs(t, service.Deposit(ctx, "nobody", decimal.NewFromInt(1)), bank.ErrAccountNotFound)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		assert.ErrorIs(t, service.Deposit(ctx, "alice", decimal.Zero), bank.ErrInvalidAmount)
		assert.ErrorIs(t, service.Withdraw(ctx, "alice", decimal.NewFromInt(-5)), bank.ErrInvalidAmount)
	})

	t.Run("overdraft", func(t *testing.T) {
		assert.ErrorIs(t, service.Withdraw(ctx, "alice", decimal.NewFromInt(1000)), bank.ErrInsufficientFunds)
	})
}

func TestTransfer(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, service.OpenAccount(ctx, "alice", "EUR"))
	require.NoError(t, service.OpenAccount(ctx, "bob", "EUR"))
	require.NoError(t, service.Deposit(ctx, "alice", decimal.NewFromInt(100)))

	transferID, err := service.Transfer(ctx, "alice", "bob", decimal.NewFromInt(30))
	require.NoError(t, err)
	require.NotEmpty(t, transferID)

	alice, err := service.GetAccount(ctx, "alice")
	require.NoError(t, err)
	bob, err := service.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "70", alice.Balance.String())
	assert.Equal(t, "30", bob.Balance.String())

	t.Run("duplicate transfer id", func(t *testing.T) {
		err := service.TransferWithID(ctx, transferID, "alice", "bob", decimal.NewFromInt(1))
		assert.ErrorIs(t, err, bank.ErrDuplicateTransfer)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := service.Transfer(ctx, "alice", "bob", decimal.NewFromInt(1000))
		assert.ErrorIs(t, err, bank.ErrInsufficientFunds)
	})

	t.Run("same account", func(t *testing.T) {
		_, err := service.Transfer(ctx, "alice", "alice", decimal.NewFromInt(1))
		assert.ErrorIs(t, err, bank.ErrSameAccount)
	})

	t.Run("unknown destination", func(t *testing.T) {
		_, err := service.Transfer(ctx, "alice", "nobody", decimal.NewFromInt(1))
		assert.ErrorIs(t, err, bank.ErrAccountNotFound)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		require.NoError(t, service.OpenAccount(ctx, "dora", "DKK"))
		_, err := service.Transfer(ctx, "alice", "dora", decimal.NewFromInt(1))
		assert.ErrorIs(t, err, bank.ErrCurrencyMismatch)
	})
}

// Concurrent deposits race on the same account scope; each loser re-reads and
// retries, so all of them must eventually land.
func TestConcurrentDepositsRetry(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, service.OpenAccount(ctx, "alice", "EUR"))

	var g errgroup.Group
	for i := 0; i < 3; i++ {
		g.Go(func() error {
			return service.Deposit(ctx, "alice", decimal.NewFromInt(10))
		})
	}
	require.NoError(t, g.Wait())

	account, err := service.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "30", account.Balance.String())
}

// The slice's filter must not leak other accounts' history into a decision.
func TestAccountScopeIsolation(t *testing.T) {
	service, store := newService(t)
	ctx := context.Background()

	require.NoError(t, service.OpenAccount(ctx, "alice", "EUR"))
	require.NoError(t, service.OpenAccount(ctx, "bob", "EUR"))
	require.NoError(t, service.Deposit(ctx, "bob", decimal.NewFromInt(500)))

	// Bob's deposit must not fund Alice.
	assert.ErrorIs(t, service.Withdraw(ctx, "alice", decimal.NewFromInt(1)), bank.ErrInsufficientFunds)

	// Nor appear in her filtered history.
	result, err := store.Query(ctx, eventstore.MustNewFilter(
		[]string{bank.EventTypeMoneyDeposited},
		map[string]any{"accountId": "alice"},
	))
	require.NoError(t, err)
	assert.Empty(t, result.Events)
}
