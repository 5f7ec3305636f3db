package batch

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"graphengine/domain/core/aggregates"
	pkgerrors "graphengine/pkg/errors"
)

var errTransactionClosed = pkgerrors.New(pkgerrors.KindInternal, "transaction is no longer running")

// TransactionState is where a transaction is in its life
type TransactionState string

const (
	TransactionRunning    TransactionState = "RUNNING"
	TransactionCommitted  TransactionState = "COMMITTED"
	TransactionRolledBack TransactionState = "ROLLED_BACK"
)

// Transaction brackets one batch on a graph's undo journal. Steps run in
// order; Rollback undoes every mutation recorded since Begin, newest first.
type Transaction struct {
	id         string
	graph      *aggregates.Graph
	checkpoint aggregates.Checkpoint
	state      TransactionState
	steps      []string
	failed     int
	logger     *zap.Logger
}

// BeginTransaction checkpoints the graph journal
func BeginTransaction(g *aggregates.Graph, logger *zap.Logger) *Transaction {
	tx := &Transaction{
		id:         uuid.NewString(),
		graph:      g,
		checkpoint: g.Checkpoint(),
		state:      TransactionRunning,
		logger:     logger,
	}
	tx.logger.Debug("Transaction started",
		zap.String("tx_id", tx.id),
		zap.String("graph", g.Name()),
		zap.Int("journal", g.JournalLen()),
	)
	return tx
}

// Step runs one named operation. Whatever a failed step managed to apply
// stays journaled, so Rollback undoes it too.
func (t *Transaction) Step(name string, fn func() error) error {
	if t.state != TransactionRunning {
		return errTransactionClosed
	}
	before := t.graph.JournalLen()
	if err := fn(); err != nil {
		t.failed++
		t.logger.Debug("Transaction step failed",
			zap.String("tx_id", t.id),
			zap.String("step", name),
			zap.Int("mutations", t.graph.JournalLen()-before),
			zap.Error(err),
		)
		return err
	}
	t.steps = append(t.steps, name)
	return nil
}

// Commit makes the applied mutations permanent
func (t *Transaction) Commit() {
	if t.state != TransactionRunning {
		return
	}
	mutations := t.graph.JournalLen()
	t.graph.Commit()
	t.state = TransactionCommitted
	t.logger.Debug("Transaction committed",
		zap.String("tx_id", t.id),
		zap.Int("steps", len(t.steps)),
		zap.Int("failed_steps", t.failed),
		zap.Int("mutations", mutations),
	)
}

// Rollback restores the graph to its state at Begin and returns the number of
// mutations undone.
func (t *Transaction) Rollback() int {
	if t.state != TransactionRunning {
		return 0
	}
	reverted := t.graph.JournalLabels(t.checkpoint)
	undone := t.graph.RevertTo(t.checkpoint)
	t.state = TransactionRolledBack
	t.logger.Info("Transaction rolled back",
		zap.String("tx_id", t.id),
		zap.String("graph", t.graph.Name()),
		zap.Int("steps", len(t.steps)),
		zap.Int("undone", undone),
	)
	t.logger.Debug("Reverted mutations", zap.String("tx_id", t.id), zap.Strings("mutations", reverted))
	return undone
}

// ID returns the transaction id
func (t *Transaction) ID() string { return t.id }

// State returns the current state
func (t *Transaction) State() TransactionState { return t.state }

// Steps lists the names of the steps that succeeded, in order
func (t *Transaction) Steps() []string {
	return append([]string(nil), t.steps...)
}
