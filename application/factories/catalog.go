package factories

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
)

//go:embed catalogs/*.hcl
var catalogFS embed.FS

// catalogFile is the top-level structure of a catalog file.
type catalogFile struct {
	Domain    string           `hcl:"domain"`
	Nodes     []*nodeDecl      `hcl:"node,block"`
	Functions []*signatureDecl `hcl:"function,block"`
	Scripts   []*signatureDecl `hcl:"script,block"`
}

type nodeDecl struct {
	Name        string     `hcl:"name,label"`
	Title       string     `hcl:"title,optional"`
	Class       string     `hcl:"class,optional"`
	Description string     `hcl:"description,optional"`
	Aliases     []string   `hcl:"aliases,optional"`
	Required    []string   `hcl:"required,optional"`
	Optional    []string   `hcl:"optional,optional"`
	Pure        bool       `hcl:"pure,optional"`
	Inputs      []*pinDecl `hcl:"input,block"`
	Outputs     []*pinDecl `hcl:"output,block"`
}

// signatureDecl declares the pins of a callable: a function for CallFunction
// nodes or a module script for particle Module nodes.
type signatureDecl struct {
	Name    string     `hcl:"name,label"`
	Title   string     `hcl:"title,optional"`
	Pure    bool       `hcl:"pure,optional"`
	Inputs  []*pinDecl `hcl:"input,block"`
	Outputs []*pinDecl `hcl:"output,block"`
}

type pinDecl struct {
	Name     string     `hcl:"name,label"`
	Type     string     `hcl:"type"`
	Friendly string     `hcl:"friendly,optional"`
	Hidden   bool       `hcl:"hidden,optional"`
	Default  *cty.Value `hcl:"default,optional"`
}

// NodeType is a catalog entry: the static part of a creatable type.
type NodeType struct {
	Name        string
	Title       string
	Class       string
	Description string
	Aliases     []string
	Required    []string
	Optional    []string
	Pure        bool
	Pins        []entities.PinSpec
}

// Signature is a declared function or module script.
type Signature struct {
	Name  string
	Title string
	Pure  bool
	Pins  []entities.PinSpec
}

// Catalog holds the node types of one domain.
type Catalog struct {
	domain    valueobjects.Domain
	types     []*NodeType
	byName    map[string]*NodeType
	functions map[string]*Signature
	scripts   map[string]*Signature
}

// LoadCatalog decodes the embedded catalog for a domain.
func LoadCatalog(domain valueobjects.Domain) (*Catalog, error) {
	filename := "catalogs/" + domain.String() + ".hcl"
	src, err := catalogFS.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("no catalog for domain %s: %w", domain, err)
	}
	cat, err := ParseCatalog(filename, src)
	if err != nil {
		return nil, err
	}
	if cat.domain != domain {
		return nil, fmt.Errorf("catalog %s declares domain %s, expected %s", filename, cat.domain, domain)
	}
	return cat, nil
}

// ParseCatalog decodes catalog source. filename is used in diagnostics only.
func ParseCatalog(filename string, src []byte) (*Catalog, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", filename, diags)
	}

	var root catalogFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode catalog %s: %w", filename, diags)
	}

	domain, err := valueobjects.ParseDomain(root.Domain)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", filename, err)
	}

	cat := &Catalog{
		domain:    domain,
		byName:    make(map[string]*NodeType),
		functions: make(map[string]*Signature),
		scripts:   make(map[string]*Signature),
	}

	for _, decl := range root.Nodes {
		t, err := decl.translate()
		if err != nil {
			return nil, fmt.Errorf("catalog %s: node %q: %w", filename, decl.Name, err)
		}
		for _, key := range append([]string{t.Name}, t.Aliases...) {
			k := strings.ToLower(key)
			if existing, dup := cat.byName[k]; dup {
				return nil, fmt.Errorf("catalog %s: %q is already used by %s", filename, key, existing.Name)
			}
			cat.byName[k] = t
		}
		cat.types = append(cat.types, t)
	}
	if err := addSignatures(cat.functions, root.Functions); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", filename, err)
	}
	if err := addSignatures(cat.scripts, root.Scripts); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", filename, err)
	}
	return cat, nil
}

func addSignatures(into map[string]*Signature, decls []*signatureDecl) error {
	for _, decl := range decls {
		specs, err := translatePins(decl.Inputs, decl.Outputs)
		if err != nil {
			return fmt.Errorf("%q: %w", decl.Name, err)
		}
		k := strings.ToLower(decl.Name)
		if _, dup := into[k]; dup {
			return fmt.Errorf("%q is declared twice", decl.Name)
		}
		title := decl.Title
		if title == "" {
			title = decl.Name
		}
		into[k] = &Signature{Name: decl.Name, Title: title, Pure: decl.Pure, Pins: specs}
	}
	return nil
}

func (d *nodeDecl) translate() (*NodeType, error) {
	specs, err := translatePins(d.Inputs, d.Outputs)
	if err != nil {
		return nil, err
	}
	title := d.Title
	if title == "" {
		title = d.Name
	}
	return &NodeType{
		Name:        d.Name,
		Title:       title,
		Class:       d.Class,
		Description: d.Description,
		Aliases:     d.Aliases,
		Required:    d.Required,
		Optional:    d.Optional,
		Pure:        d.Pure,
		Pins:        specs,
	}, nil
}

// translatePins lays inputs out before outputs, each in declaration order.
func translatePins(inputs, outputs []*pinDecl) ([]entities.PinSpec, error) {
	specs := make([]entities.PinSpec, 0, len(inputs)+len(outputs))
	for _, group := range []struct {
		dir   valueobjects.PinDirection
		decls []*pinDecl
	}{{valueobjects.PinInput, inputs}, {valueobjects.PinOutput, outputs}} {
		for _, p := range group.decls {
			spec, err := p.translate(group.dir)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
	}
	return specs, nil
}

func (p *pinDecl) translate(dir valueobjects.PinDirection) (entities.PinSpec, error) {
	t, err := valueobjects.ParsePinType(p.Type)
	if err != nil {
		return entities.PinSpec{}, fmt.Errorf("pin %q: %w", p.Name, err)
	}
	spec := entities.PinSpec{
		Name:         p.Name,
		FriendlyName: p.Friendly,
		Direction:    dir,
		Type:         t,
		Hidden:       p.Hidden,
	}
	if p.Default != nil && !p.Default.IsNull() {
		if !t.CarriesValue() {
			return entities.PinSpec{}, fmt.Errorf("pin %q: %s pins cannot have a default", p.Name, t)
		}
		v, err := convert.Convert(*p.Default, t.ValueType())
		if err != nil {
			return entities.PinSpec{}, fmt.Errorf("pin %q: default does not fit %s: %w", p.Name, t, err)
		}
		spec.Default = &v
	}
	return spec, nil
}

// Domain returns the catalog's domain
func (c *Catalog) Domain() valueobjects.Domain {
	return c.domain
}

// Lookup finds a type by canonical name or alias, case-insensitively.
func (c *Catalog) Lookup(name string) (*NodeType, bool) {
	t, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Types returns the canonical type names, sorted.
func (c *Catalog) Types() []string {
	names := make([]string, 0, len(c.types))
	for _, t := range c.types {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Function looks up a declared function signature
func (c *Catalog) Function(name string) (*Signature, bool) {
	s, ok := c.functions[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Functions lists declared function names, sorted
func (c *Catalog) Functions() []string {
	return signatureNames(c.functions)
}

// Script looks up a declared module script
func (c *Catalog) Script(name string) (*Signature, bool) {
	s, ok := c.scripts[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Scripts lists declared module script names, sorted
func (c *Catalog) Scripts() []string {
	return signatureNames(c.scripts)
}

func signatureNames(m map[string]*Signature) []string {
	names := make([]string, 0, len(m))
	for _, s := range m {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
