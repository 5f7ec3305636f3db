package eventbridge

import (
	"context"
	"fmt"

	"graphengine/application/ports"
	"graphengine/pkg/extensions"
)

// Plugin publishes the events of each committed batch straight from the
// after_batch hook. Use it when the journal outbox is off.
type Plugin struct {
	publisher ports.EventPublisher
}

// NewPlugin creates the direct publishing plugin
func NewPlugin(publisher ports.EventPublisher) *Plugin {
	return &Plugin{publisher: publisher}
}

func (p *Plugin) Name() string                     { return "eventbridge" }
func (p *Plugin) Initialize(context.Context) error { return nil }
func (p *Plugin) Shutdown(context.Context) error   { return nil }

func (p *Plugin) RegisterHooks(hooks *extensions.HookManager) error {
	hooks.Register(extensions.HookAfterBatch, func(ctx context.Context, data interface{}) error {
		record, ok := data.(ports.BatchRecord)
		if !ok {
			return fmt.Errorf("eventbridge: unexpected after_batch data %T", data)
		}
		return p.publisher.PublishBatch(ctx, record.Events)
	})
	return nil
}

var _ extensions.Plugin = (*Plugin)(nil)
