package billingsource

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rxledger/statements/internal/config"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
)

// Store is a read-only connection to the pharmacy billing database. The
// driver is chosen by configuration, queries are written with ? placeholders
// and rebound for the driver.
type Store struct {
	DB           *sqlx.DB
	PaidStatuses []string
	QueryTimeout time.Duration
	logger       *logger.Logger
}

func NewStore(cfg *config.Configuration, logger *logger.Logger) (*Store, error) {
	var db *sqlx.DB
	connect := func() error {
		var err error
		db, err = sqlx.Connect(cfg.Billing.Driver, cfg.Billing.DSN)
		if err != nil {
			logger.Warnw("billing database not reachable, retrying",
				"driver", cfg.Billing.Driver,
				"error", err,
			)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = time.Minute
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not connect to the billing database").
			Mark(ierr.ErrDatabase)
	}

	return &Store{
		DB:           db,
		PaidStatuses: cfg.Billing.PaidPaymentStatuses,
		QueryTimeout: cfg.Billing.QueryTimeout(),
		logger:       logger,
	}, nil
}

// WithTimeout bounds a single billing query
func (s *Store) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.QueryTimeout)
}

// Close closes the billing database connection
func (s *Store) Close() error {
	return s.DB.Close()
}
