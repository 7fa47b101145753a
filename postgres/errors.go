package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/web3tea/tidelog/eventstore"
)

// classify maps driver errors onto the store's taxonomy. Connectivity
// problems and caller cancellation surface as ErrStoreUnavailable; everything
// the backend itself rejected surfaces as ErrStoreInternal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", eventstore.ErrStoreUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s (SQLSTATE %s)", eventstore.ErrStoreInternal, pgErr.Message, pgErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %v", eventstore.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%w: %v", eventstore.ErrStoreInternal, err)
}
