package batch_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphengine/application/batch"
	"graphengine/domain/config"
	"graphengine/domain/core/fixtures"
	"graphengine/domain/core/valueobjects"
	"graphengine/domain/services/pins"
	pkgerrors "graphengine/pkg/errors"
)

func TestPinValues_KeepDocumentOrder(t *testing.T) {
	var pv batch.PinValues
	require.NoError(t, json.Unmarshal([]byte(`{"z.Last": 1, "a.First": "x", "m.Mid": [1, 2], "a.Dotted.Name": true}`), &pv))

	require.Len(t, pv, 4)
	keys := make([]string, 0, len(pv))
	for _, v := range pv {
		keys = append(keys, v.Key())
	}
	assert.Equal(t, []string{"z.Last", "a.First", "m.Mid", "a.Dotted.Name"}, keys)
	assert.Equal(t, "a", pv[3].Ref)
	assert.Equal(t, "Dotted.Name", pv[3].Pin)
	assert.JSONEq(t, `[1, 2]`, string(pv[2].Value))

	out, err := json.Marshal(pv)
	require.NoError(t, err)
	assert.Equal(t, `{"z.Last":1,"a.First":"x","m.Mid":[1,2],"a.Dotted.Name":true}`, string(out))
}

func TestPinValues_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not an object", `[1, 2]`},
		{"key without pin", `{"ref": 1}`},
		{"empty ref", `{".pin": 1}`},
		{"duplicate key", `{"a.b": 1, "a.b": 2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pv batch.PinValues
			assert.Error(t, json.Unmarshal([]byte(tt.doc), &pv))
		})
	}
}

func TestDecodeRequest(t *testing.T) {
	req, err := batch.DecodeRequest([]byte(`{
		"graph_ref": {"asset_path": "/Game/BP_Door", "graph_name": "EventGraph"},
		"nodes": [{"ref": "a", "type": "Event", "position": {"x": 10, "y": 20}, "properties": {"event_name": "ReceiveTick"}}],
		"auto_compile": false
	}`))
	require.NoError(t, err)

	assert.Equal(t, "/Game/BP_Door:EventGraph", req.Graph.String())
	require.Len(t, req.Nodes, 1)
	assert.Equal(t, valueobjects.NewPosition(10, 20), *req.Nodes[0].Position)
	assert.Equal(t, "ReceiveTick", req.Nodes[0].Properties.StringOr("event_name", ""))
	assert.False(t, req.ShouldCompile(config.DefaultDomainConfig()))
	assert.Equal(t, 1, req.OperationCount())

	_, err = batch.DecodeRequest([]byte(`{"nodez": []}`))
	assert.Equal(t, pkgerrors.KindInvalidRequest, pkgerrors.KindOf(err))
}

func TestRequest_Defaults(t *testing.T) {
	req := &batch.Request{}
	dev := config.DefaultDomainConfig()
	prod := config.ProductionDomainConfig()

	assert.Equal(t, batch.PolicyStop, req.Policy(dev))
	assert.Equal(t, batch.PolicyRollback, req.Policy(prod))
	assert.Equal(t, batch.PolicyStop, req.Policy(nil))
	assert.True(t, req.ShouldCompile(nil))

	req.OnError = batch.PolicyContinue
	assert.Equal(t, batch.PolicyContinue, req.Policy(prod))
}

func TestRequest_Validate(t *testing.T) {
	small := config.DefaultDomainConfig()
	small.MaxOperationsPerBatch = 2

	tests := []struct {
		name    string
		doc     string
		cfg     *config.DomainConfig
		wantErr string
	}{
		{name: "empty batch", doc: `{}`},
		{name: "node without type", doc: `{"nodes": [{"ref": "a"}]}`, wantErr: "nodes[0].type"},
		{name: "connection without pin", doc: `{"connections": [{"source_ref": "a", "target_ref": "b", "target_pin": "x"}]}`, wantErr: "source_pin"},
		{name: "unknown policy", doc: `{"on_error": "retry"}`, wantErr: "on_error"},
		{name: "half a break", doc: `{"break_links": [{"source_ref": "a", "source_pin": "then"}]}`, wantErr: "break_links[0]"},
		{name: "bare break", doc: `{"post_split_breaks": [{}]}`, wantErr: "post_split_breaks[0]"},
		{name: "reused ref", doc: `{"nodes": [{"ref": "a", "type": "Event"}, {"ref": "A", "type": "Branch"}]}`, wantErr: "reuses ref"},
		{name: "empty removal", doc: `{"removals": [""]}`, wantErr: "removals[0]"},
		{
			name:    "too many operations",
			doc:     `{"removals": ["a", "b", "c"]}`,
			cfg:     small,
			wantErr: "limit is 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if cfg == nil {
				cfg = config.DefaultDomainConfig()
			}
			err := decode(t, tt.doc).Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, pkgerrors.KindInvalidRequest, pkgerrors.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTransaction(t *testing.T) {
	g := fixtures.NewGraph(valueobjects.DomainVisualScript)
	a, b := fixtures.ExecNode("A"), fixtures.ExecNode("B")
	fixtures.MustAdd(g, a, b)
	before := g.Fingerprint()

	t.Run("rollback undoes failed and successful steps", func(t *testing.T) {
		tx := batch.BeginTransaction(g, zap.NewNop())
		assert.Equal(t, batch.TransactionRunning, tx.State())
		assert.NotEmpty(t, tx.ID())

		require.NoError(t, tx.Step("link", func() error {
			_, err := pins.Connect(g, pins.Find(a, "then", valueobjects.PinOutput), pins.Find(b, "execute", valueobjects.PinInput))
			return err
		}))
		err := tx.Step("remove", func() error {
			if err := g.RemoveNode(b); err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.KindInternal, "boom")
		})
		require.Error(t, err)
		assert.Equal(t, []string{"link"}, tx.Steps())

		assert.Positive(t, tx.Rollback())
		assert.Equal(t, batch.TransactionRolledBack, tx.State())
		assert.Equal(t, before, g.Fingerprint())
		assert.Zero(t, tx.Rollback(), "second rollback is a no-op")

		err = tx.Step("late", func() error { return nil })
		assert.Equal(t, pkgerrors.KindInternal, pkgerrors.KindOf(err))
	})

	t.Run("commit clears the journal", func(t *testing.T) {
		tx := batch.BeginTransaction(g, zap.NewNop())
		require.NoError(t, tx.Step("link", func() error {
			_, err := pins.Connect(g, pins.Find(a, "then", valueobjects.PinOutput), pins.Find(b, "execute", valueobjects.PinInput))
			return err
		}))
		tx.Commit()

		assert.Equal(t, batch.TransactionCommitted, tx.State())
		assert.Zero(t, g.JournalLen())
		assert.Zero(t, tx.Rollback())
		assert.Equal(t, 1, g.ConnectionCount())
	})
}
