// Package txn runs multi-document writes inside a MongoDB transaction when
// the deployment supports it, and falls back to plain sequential writes on
// standalone servers (local development, some test setups).
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Mode tells the callback whether its writes are covered by a transaction.
type Mode int

const (
	// Transactional writes commit or abort together.
	Transactional Mode = iota
	// BestEffort writes are applied one by one; a failure leaves earlier writes in place.
	BestEffort
)

func (m Mode) String() string {
	if m == Transactional {
		return "transactional"
	}
	return "best_effort"
}

// Server error codes meaning "transactions are not available here".
var notSupportedCodes = map[int32]bool{
	20:  true, // IllegalOperation: transaction numbers only allowed on replica set members
	51:  true, // illegal operation on standalone
	263: true, // OperationNotSupportedInTransaction
}

var notSupportedKeywords = []string{
	"transaction",
	"replica set",
	"session",
	"not supported",
	"illegal operation",
}

// IsNotSupported reports whether err means the server cannot run transactions.
// Command errors are matched by code; anything else needs at least two of the
// known keywords to avoid treating ordinary failures as a capability problem.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		if notSupportedCodes[ce.Code] {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range notSupportedKeywords {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	return hits >= 2
}

// Run executes fn inside a transaction on client. If the server reports that
// transactions are unsupported, fn is executed again without one and told so
// through its Mode argument.
func Run(ctx context.Context, client *mongo.Client, log *zap.Logger, fn func(ctx context.Context, mode Mode) error) error {
	if client == nil {
		return fn(ctx, BestEffort)
	}

	sess, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fn(ctx, BestEffort)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, Transactional)
	})
	if err != nil && IsNotSupported(err) {
		if log != nil {
			log.Debug("transactions unavailable; running without one", zap.Error(err))
		}
		return fn(ctx, BestEffort)
	}
	return err
}
