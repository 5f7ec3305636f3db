package valueobjects

import (
	"fmt"
	"strings"
)

// Domain is the kind of a graph. It selects the node factory and the connection schema.
type Domain string

const (
	DomainVisualScript Domain = "visual_script"
	DomainMaterial     Domain = "material"
	DomainParticle     Domain = "particle"
	DomainAnimState    Domain = "anim_state"
)

var domainAliases = map[string]Domain{
	"visual_script": DomainVisualScript,
	"visualscript":  DomainVisualScript,
	"blueprint":     DomainVisualScript,
	"event_graph":   DomainVisualScript,
	"material":      DomainMaterial,
	"shader":        DomainMaterial,
	"particle":      DomainParticle,
	"niagara":       DomainParticle,
	"anim_state":    DomainAnimState,
	"animation":     DomainAnimState,
	"state_machine": DomainAnimState,
}

// AllDomains lists every domain in a stable order.
func AllDomains() []Domain {
	return []Domain{DomainVisualScript, DomainMaterial, DomainParticle, DomainAnimState}
}

// ParseDomain resolves a domain name or one of its aliases, case-insensitively.
func ParseDomain(s string) (Domain, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	if d, ok := domainAliases[key]; ok {
		return d, nil
	}
	return "", fmt.Errorf("unknown graph domain %q", s)
}

// IsValid reports whether d is one of the known domains
func (d Domain) IsValid() bool {
	for _, known := range AllDomains() {
		if d == known {
			return true
		}
	}
	return false
}

func (d Domain) String() string {
	return string(d)
}
