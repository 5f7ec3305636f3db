package host

import (
	"fmt"

	"graphengine/application/factories"
	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	"graphengine/domain/services/pins"
)

// Demo asset paths created by Seed
const (
	DemoBlueprint    = "/Game/Demo/BP_Door"
	DemoMaterial     = "/Game/Demo/M_Floor"
	DemoParticle     = "/Game/Demo/NS_Sparks"
	DemoStateMachine = "/Game/Demo/ABP_Hero"
)

type seedNode struct {
	ref    string
	typ    string
	params entities.Params
	x, y   float64
}

type seedLink struct {
	from, out string
	to, in    string
}

type seedGraph struct {
	asset  string
	name   string
	domain valueobjects.Domain
	nodes  []seedNode
	links  []seedLink
}

var demoGraphs = []seedGraph{
	{
		asset: DemoBlueprint, name: "EventGraph", domain: valueobjects.DomainVisualScript,
		nodes: []seedNode{
			{ref: "begin", typ: "Event"},
			{ref: "print", typ: "PrintString", params: entities.Params{"message": "Door ready"}, x: 300},
		},
		links: []seedLink{{"begin", "then", "print", "execute"}},
	},
	{
		asset: DemoMaterial, name: "MaterialGraph", domain: valueobjects.DomainMaterial,
		nodes: []seedNode{
			{ref: "out", typ: "MaterialOutput", x: 400},
			{ref: "color", typ: "Constant3Vector"},
		},
		links: []seedLink{{"color", "Output", "out", "BaseColor"}},
	},
	{
		asset: DemoParticle, name: "ParticleSpawnScript", domain: valueobjects.DomainParticle,
		nodes: []seedNode{
			{ref: "in", typ: "ParticleInput"},
			{ref: "out", typ: "ParticleOutput", x: 400},
		},
		links: []seedLink{{"in", "Map", "out", "Map"}},
	},
	{
		asset: DemoStateMachine, name: "Locomotion", domain: valueobjects.DomainAnimState,
		nodes: []seedNode{
			{ref: "entry", typ: "Entry"},
			{ref: "idle", typ: "State", params: entities.Params{"name": "Idle"}, x: 300},
		},
		links: []seedLink{{"entry", "Entry", "idle", "In"}},
	},
}

// Seed fills the library with one small graph per domain. The graphs start
// with a committed journal and no pending events.
func (l *Library) Seed(registry *factories.Registry) error {
	for _, sg := range demoGraphs {
		f, err := registry.FactoryFor(sg.domain)
		if err != nil {
			return err
		}
		g, err := l.CreateGraph(sg.asset, sg.name, sg.domain)
		if err != nil {
			return err
		}
		if err := seedGraphContent(g, f, sg); err != nil {
			l.Remove(sg.asset)
			return fmt.Errorf("seed %s: %w", sg.asset, err)
		}
		g.Commit()
		g.MarkEventsAsCommitted()
	}
	return nil
}

func seedGraphContent(g *aggregates.Graph, f factories.NodeFactory, sg seedGraph) error {
	created := make(map[string]*entities.Node, len(sg.nodes))
	for _, sn := range sg.nodes {
		n, err := f.CreateNode(g, sn.typ, sn.params, valueobjects.NewPosition(sn.x, sn.y))
		if err != nil {
			return err
		}
		created[sn.ref] = n
	}
	for _, sl := range sg.links {
		from, to := created[sl.from], created[sl.to]
		if _, err := pins.Connect(g,
			pins.Find(from, sl.out, valueobjects.PinOutput),
			pins.Find(to, sl.in, valueobjects.PinInput)); err != nil {
			return err
		}
	}
	return nil
}
