package factories_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"

	"graphengine/application/factories"
	"graphengine/domain/config"
	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/fixtures"
	"graphengine/domain/core/schemas"
	"graphengine/domain/core/valueobjects"
	"graphengine/domain/services/pins"
	pkgerrors "graphengine/pkg/errors"
)

func registry(t *testing.T) *factories.Registry {
	t.Helper()
	r, err := factories.NewDefaultRegistry(zap.NewNop())
	require.NoError(t, err)
	return r
}

func factoryFor(t *testing.T, domain valueobjects.Domain) (factories.NodeFactory, *aggregates.Graph) {
	t.Helper()
	g := fixtures.NewGraph(domain)
	f, err := registry(t).FactoryForGraph(g)
	require.NoError(t, err)
	return f, g
}

func create(t *testing.T, f factories.NodeFactory, g *aggregates.Graph, typeName string, params entities.Params) *entities.Node {
	t.Helper()
	n, err := f.CreateNode(g, typeName, params, valueobjects.NewPosition(0, 0))
	require.NoError(t, err)
	return n
}

func TestCreateNode_ResolvesAliases(t *testing.T) {
	f, g := factoryFor(t, valueobjects.DomainVisualScript)

	a := create(t, f, g, "PrintCall", nil)
	b := create(t, f, g, "print", nil)

	assert.Equal(t, "PrintString", a.TypeName())
	assert.Equal(t, "PrintString_0", a.Name())
	assert.Equal(t, "PrintString_1", b.Name())
	assert.Equal(t, "Print String", a.Title())
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 2, g.JournalLen())

	assert.Equal(t, `"Hello"`, pins.GetDefaultString(pins.Find(a, "InString", valueobjects.PinInput)))
	payload, ok := a.Payload().(*factories.ScriptPayload)
	require.True(t, ok)
	assert.Equal(t, "K2Node_CallFunction", payload.Kind())
}

func TestCreateNode_Errors(t *testing.T) {
	tests := []struct {
		name     string
		domain   valueobjects.Domain
		graph    valueobjects.Domain
		typeName string
		params   entities.Params
		kind     pkgerrors.Kind
	}{
		{name: "unsupported type", domain: valueobjects.DomainVisualScript, typeName: "Teleport", kind: pkgerrors.KindFactoryUnsupportedType},
		{name: "material type in event graph", domain: valueobjects.DomainVisualScript, typeName: "Lerp", kind: pkgerrors.KindFactoryUnsupportedType},
		{name: "missing name", domain: valueobjects.DomainVisualScript, typeName: "CustomEvent", kind: pkgerrors.KindMissingRequiredParam},
		{name: "blank name", domain: valueobjects.DomainVisualScript, typeName: "CustomEvent", params: entities.Params{"name": " "}, kind: pkgerrors.KindMissingRequiredParam},
		{name: "unknown function", domain: valueobjects.DomainVisualScript, typeName: "CallFunction", params: entities.Params{"function": "Fly"}, kind: pkgerrors.KindInvalidRequest},
		{name: "sequence too small", domain: valueobjects.DomainVisualScript, typeName: "Sequence", params: entities.Params{"outputs": 0.0}, kind: pkgerrors.KindInvalidRequest},
		{name: "bad pin property", domain: valueobjects.DomainVisualScript, typeName: "Delay", params: entities.Params{"Duration": "soon"}, kind: pkgerrors.KindInvalidPinValue},
		{name: "unknown module script", domain: valueobjects.DomainParticle, typeName: "Module", params: entities.Params{"script": "Explode"}, kind: pkgerrors.KindInvalidRequest},
		{name: "unknown op", domain: valueobjects.DomainParticle, typeName: "Op", params: entities.Params{"op": "pow"}, kind: pkgerrors.KindInvalidRequest},
		{name: "texcoord out of range", domain: valueobjects.DomainMaterial, typeName: "TexCoord", params: entities.Params{"index": 9.0}, kind: pkgerrors.KindInvalidRequest},
		{name: "graph of another domain", domain: valueobjects.DomainMaterial, graph: valueobjects.DomainParticle, typeName: "Constant", kind: pkgerrors.KindDomainMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := registry(t).FactoryFor(tt.domain)
			require.NoError(t, err)
			graphDomain := tt.graph
			if graphDomain == "" {
				graphDomain = tt.domain
			}
			g := fixtures.NewGraph(graphDomain)

			n, err := f.CreateNode(g, tt.typeName, tt.params, valueobjects.Position{})
			require.Error(t, err)
			assert.Nil(t, n)
			assert.Equal(t, tt.kind, pkgerrors.KindOf(err))
			assert.Equal(t, 0, g.NodeCount())
			assert.Equal(t, 0, g.JournalLen())
		})
	}
}

func TestCreateNode_MissingParamsAreAllNamed(t *testing.T) {
	f, g := factoryFor(t, valueobjects.DomainMaterial)

	_, err := f.CreateNode(g, "ScalarParameter", entities.Params{"value": 1.0}, valueobjects.Position{})
	require.Error(t, err)
	var de *pkgerrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, pkgerrors.KindMissingRequiredParam, de.Kind())
	assert.Equal(t, []string{"parameter_name"}, de.Details["missing"])
	assert.Contains(t, err.Error(), "parameter_name")
}

func TestVisualScript_DynamicTypes(t *testing.T) {
	f, g := factoryFor(t, valueobjects.DomainVisualScript)

	t.Run("call function", func(t *testing.T) {
		n := create(t, f, g, "CallFunction", entities.Params{"function": "SetActorLocation"})
		assert.Equal(t, "Set Actor Location", n.Title())

		// The only pin answering to "Target" is the hidden self pin.
		target := pins.Find(n, "Target", valueobjects.PinInput)
		require.NotNil(t, target)
		assert.Equal(t, "self", target.Name())

		loc := pins.Find(n, "New Location", pins.AnyDirection)
		require.NotNil(t, loc)
		assert.Equal(t, "NewLocation", loc.Name())
		assert.True(t, pins.CanSplit(g, loc))
	})

	t.Run("sequence outputs", func(t *testing.T) {
		n := create(t, f, g, "Sequence", entities.Params{"outputs": "3"})
		var outs []string
		for _, p := range n.Pins() {
			if p.Direction() == valueobjects.PinOutput {
				outs = append(outs, p.Name())
			}
		}
		assert.Equal(t, []string{"then_0", "then_1", "then_2"}, outs)
		assert.NotNil(t, pins.Find(n, "Then 1", valueobjects.PinOutput))
	})

	t.Run("variables", func(t *testing.T) {
		get := create(t, f, g, "VariableGet", entities.Params{"variable": "Speed"})
		out := pins.Find(get, "Speed", valueobjects.PinOutput)
		require.NotNil(t, out)
		assert.Equal(t, "float", out.Type().String())
		assert.Equal(t, "Get Speed", get.Title())

		set := create(t, f, g, "Set", entities.Params{"variable": "Home", "type": "vector"})
		in := pins.Find(set, "Home", valueobjects.PinInput)
		require.NotNil(t, in)
		assert.Equal(t, "struct:Vector", in.Type().String())
		assert.Equal(t, set.PinCount()-1, set.IndexOfPin(pins.Find(set, "Home", valueobjects.PinOutput)))
	})

	t.Run("event name", func(t *testing.T) {
		n := create(t, f, g, "Event", entities.Params{"event_name": "ReceiveTick"})
		assert.Equal(t, "Event Tick", n.Title())
		assert.Equal(t, "ReceiveTick", n.Payload().(*factories.ScriptPayload).MemberName)
	})
}

func TestCreateNode_PinProperties(t *testing.T) {
	f, g := factoryFor(t, valueobjects.DomainVisualScript)

	byParam := create(t, f, g, "PrintString", entities.Params{"message": "from param", "duration": 5.0})
	assert.Equal(t, `"from param"`, pins.GetDefaultString(pins.Find(byParam, "InString", valueobjects.PinInput)))
	assert.Equal(t, `5`, pins.GetDefaultString(pins.Find(byParam, "Duration", valueobjects.PinInput)))

	byPin := create(t, f, g, "PrintString", entities.Params{
		"In String":   "from pin",
		"TextColor":   map[string]any{"R": 1.0, "G": 0.0, "B": 0.0, "A": 1.0},
		"Unsupported": true,
	})
	assert.Equal(t, `"from pin"`, pins.GetDefaultString(pins.Find(byPin, "InString", valueobjects.PinInput)))
	assert.Equal(t, `{"A":1,"B":0,"G":0,"R":1}`, pins.GetDefaultString(pins.Find(byPin, "TextColor", valueobjects.PinInput)))
}

func TestMaterial_ValueMirrorsPinDefault(t *testing.T) {
	f, g := factoryFor(t, valueobjects.DomainMaterial)

	c := create(t, f, g, "Constant", entities.Params{"value": 0.25})
	payload := c.Payload().(*factories.ExpressionPayload)
	assert.Equal(t, "0.25", valueobjects.FormatValue(payload.Value))

	require.NoError(t, pins.SetDefault(g, pins.Find(c, "R", valueobjects.PinInput), cty.NumberFloatVal(0.75)))
	assert.Equal(t, "0.75", valueobjects.FormatValue(payload.Value))

	param := create(t, f, g, "VectorParameter", entities.Params{"parameter_name": "Tint", "value": []any{1.0, 0.0, 0.0, 1.0}})
	pp := param.Payload().(*factories.ExpressionPayload)
	assert.Equal(t, "Tint", pp.ParameterName)
	assert.Equal(t, "Tint", param.Title())
	assert.Equal(t, "[1,0,0,1]", valueobjects.FormatValue(pp.Value))

	cp := g.Checkpoint()
	require.NoError(t, pins.SetDefault(g, pins.Find(param, "DefaultValue", valueobjects.PinInput), cty.NumberIntVal(0)))
	assert.Equal(t, "[0,0,0,0]", valueobjects.FormatValue(pp.Value))
	g.RevertTo(cp)
	assert.Equal(t, "[1,0,0,1]", valueobjects.FormatValue(pp.Value))
}

func TestParticle_DynamicTypes(t *testing.T) {
	f, g := factoryFor(t, valueobjects.DomainParticle)

	in := create(t, f, g, "InputMap", entities.Params{"usage": "Spawn"})
	assert.Equal(t, "spawn", in.Payload().(*factories.ParticlePayload).Usage)

	mod := create(t, f, g, "Module", entities.Params{"script": "spawnrate"})
	assert.Equal(t, "Spawn Rate", mod.Title())
	assert.Equal(t, "SpawnRate", mod.Payload().(*factories.ParticlePayload).Script)
	assert.Equal(t, "10", pins.GetDefaultString(pins.Find(mod, "Spawn Rate", valueobjects.PinInput)))

	_, err := pins.Connect(g, pins.Find(in, "Map", valueobjects.PinOutput), pins.Find(mod, "Map", valueobjects.PinInput))
	require.NoError(t, err)

	get := create(t, f, g, "MapGet", entities.Params{"attributes": []any{"Particles.Age:float", "Particles.Position:vector"}})
	assert.NotNil(t, pins.Find(get, "Particles.Position", valueobjects.PinOutput))
	assert.Equal(t, 3, get.PinCount())

	set := create(t, f, g, "MapSet", entities.Params{"attributes": "Particles.Color:color"})
	assert.Equal(t, valueobjects.PinInput, pins.Find(set, "Particles.Color", pins.AnyDirection).Direction())
	assert.Equal(t, "Dest", set.Pins()[set.PinCount()-1].Name())

	op := create(t, f, g, "Op", entities.Params{"op": "Multiply"})
	assert.Equal(t, "Multiply", op.Title())
	assert.Equal(t, 3, op.PinCount())
}

func TestAnimState_EntryTracksInitialState(t *testing.T) {
	f, g := factoryFor(t, valueobjects.DomainAnimState)

	entry := create(t, f, g, "Entry", nil)
	idle := create(t, f, g, "State", entities.Params{"name": "Idle"})
	run := create(t, f, g, "State", entities.Params{"name": "Run"})
	assert.Equal(t, "Idle", idle.Title())

	out := pins.Find(entry, "Entry", valueobjects.PinOutput)
	_, err := pins.Connect(g, out, pins.Find(idle, "In", valueobjects.PinInput))
	require.NoError(t, err)
	payload := entry.Payload().(*factories.StatePayload)
	assert.Equal(t, "Idle", payload.InitialState)

	// Entry keeps a single link: connecting elsewhere replaces it.
	_, err = pins.Connect(g, out, pins.Find(run, "In", valueobjects.PinInput))
	require.NoError(t, err)
	assert.Equal(t, "Run", payload.InitialState)
	assert.Equal(t, 1, out.LinkCount())

	tr := create(t, f, g, "Transition", entities.Params{"duration": "0.5", "priority": 2.0})
	tp := tr.Payload().(*factories.StatePayload)
	assert.Equal(t, 0.5, tp.Duration)
	assert.Equal(t, 2, tp.Priority)
}

func TestDescribe(t *testing.T) {
	r := registry(t)
	f, err := r.FactoryFor(valueobjects.DomainVisualScript)
	require.NoError(t, err)

	info, ok := f.Describe("printcall")
	require.True(t, ok)
	assert.Equal(t, "PrintString", info.Name)
	assert.Equal(t, valueobjects.DomainVisualScript, info.Domain)
	assert.ElementsMatch(t, []string{"PrintCall", "Print"}, info.Aliases)
	assert.True(t, info.Dynamic)
	require.NotEmpty(t, info.Pins)
	assert.Equal(t, "execute", info.Pins[0].Name)
	assert.Empty(t, info.Pins[0].Default)

	branch, ok := f.Describe("Branch")
	require.True(t, ok)
	assert.False(t, branch.Dynamic)

	_, ok = f.Describe("Nope")
	assert.False(t, ok)

	assert.True(t, f.Supports("ifthenelse"))
	assert.False(t, f.Supports(""))
	assert.Equal(t, []string{"function"}, f.RequiredParams("CallFunction"))
	assert.Equal(t, []string{"target"}, f.OptionalParams("CallFunction"))
	assert.Nil(t, f.RequiredParams("Nope"))
	assert.Contains(t, f.SupportedTypes(), "Sequence")
}

func TestReconstructNode_KeepsDefaultsLinksAndSplits(t *testing.T) {
	f, g := factoryFor(t, valueobjects.DomainVisualScript)

	event := create(t, f, g, "Event", nil)
	breaker := create(t, f, g, "BreakVector", nil)
	call := create(t, f, g, "CallFunction", entities.Params{"function": "SetActorLocation"})

	require.NoError(t, pins.SetDefault(g, pins.Find(call, "Sweep", valueobjects.PinInput), cty.True))
	children, err := pins.Split(g, pins.Find(call, "NewLocation", valueobjects.PinInput))
	require.NoError(t, err)
	require.Len(t, children, 3)
	require.NoError(t, pins.SetDefault(g, children[1], cty.NumberIntVal(5)))

	_, err = pins.Connect(g, pins.Find(event, "then", valueobjects.PinOutput), pins.Find(call, "execute", valueobjects.PinInput))
	require.NoError(t, err)
	_, err = pins.Connect(g, pins.Find(breaker, "X", valueobjects.PinOutput), pins.Find(call, "NewLocation_X", valueobjects.PinInput))
	require.NoError(t, err)

	before := g.Snapshot()
	links := g.ConnectionCount()
	cp := g.Checkpoint()

	require.NoError(t, f.ReconstructNode(g, call))
	assert.Equal(t, before, g.Snapshot())
	assert.Equal(t, links, g.ConnectionCount())
	assert.Equal(t, "true", pins.GetDefaultString(pins.Find(call, "bSweep", valueobjects.PinInput)))
	assert.Equal(t, "5", pins.GetDefaultString(pins.Find(call, "NewLocation_Y", valueobjects.PinInput)))

	assert.Positive(t, g.RevertTo(cp))
	assert.Equal(t, before, g.Snapshot())
}

func TestReconstructNode_SelfLink(t *testing.T) {
	cfg := config.DevelopmentDomainConfig()
	schema, err := schemas.ForDomain(valueobjects.DomainVisualScript, cfg)
	require.NoError(t, err)
	g, err := aggregates.NewGraph("/Game/BP_Loop", "EventGraph", schema, cfg)
	require.NoError(t, err)
	f, err := registry(t).FactoryForGraph(g)
	require.NoError(t, err)

	printer := create(t, f, g, "PrintString", nil)
	_, err = pins.Connect(g, pins.Find(printer, "then", valueobjects.PinOutput), pins.Find(printer, "execute", valueobjects.PinInput))
	require.NoError(t, err)
	old := pins.Find(printer, "then", valueobjects.PinOutput)

	require.NoError(t, f.ReconstructNode(g, printer))
	require.NoError(t, g.Validate())

	then := pins.Find(printer, "then", valueobjects.PinOutput)
	exec := pins.Find(printer, "execute", valueobjects.PinInput)
	assert.NotSame(t, old, then)
	assert.Equal(t, 1, g.ConnectionCount())
	require.Len(t, then.Links(), 1)
	assert.Same(t, exec, then.Links()[0])
	assert.GreaterOrEqual(t, printer.IndexOfPin(then.Links()[0]), 0)
}

func TestReconstructNode_ForeignNode(t *testing.T) {
	f, g := factoryFor(t, valueobjects.DomainVisualScript)
	other := fixtures.NewGraph(valueobjects.DomainVisualScript)
	n := create(t, f, other, "Branch", nil)

	err := f.ReconstructNode(g, n)
	assert.Equal(t, pkgerrors.KindRefNotFound, pkgerrors.KindOf(err))
}
