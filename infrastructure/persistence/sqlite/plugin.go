package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"graphengine/application/ports"
	"graphengine/pkg/extensions"
)

// JournalPlugin writes every committed batch to the journal. With an outbox
// it also starts delivering the journaled events.
type JournalPlugin struct {
	store   ports.JournalStore
	outbox  *OutboxProcessor
	logger  *zap.Logger
	started bool
}

// NewJournalPlugin creates the plugin. outbox may be nil.
func NewJournalPlugin(store ports.JournalStore, outbox *OutboxProcessor, logger *zap.Logger) *JournalPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalPlugin{store: store, outbox: outbox, logger: logger}
}

func (p *JournalPlugin) Name() string { return "journal" }

func (p *JournalPlugin) Initialize(ctx context.Context) error {
	if p.outbox != nil {
		p.outbox.Start(context.WithoutCancel(ctx))
		p.started = true
	}
	return nil
}

func (p *JournalPlugin) RegisterHooks(hooks *extensions.HookManager) error {
	hooks.Register(extensions.HookAfterBatch, p.afterBatch)
	return nil
}

func (p *JournalPlugin) Shutdown(context.Context) error {
	if p.started {
		p.outbox.Stop()
		p.started = false
	}
	return nil
}

func (p *JournalPlugin) afterBatch(ctx context.Context, data interface{}) error {
	record, ok := data.(ports.BatchRecord)
	if !ok {
		return fmt.Errorf("journal: unexpected after_batch data %T", data)
	}
	if err := p.store.Append(ctx, record); err != nil {
		p.logger.Error("Failed to journal batch",
			zap.String("batch_id", record.ID),
			zap.String("graph", record.Graph.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

var _ extensions.Plugin = (*JournalPlugin)(nil)
