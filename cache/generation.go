package cache

import (
	"fmt"
	"strings"
)

// Purpose is the logical role of a cache generation.
type Purpose string

const (
	PurposeStatic  Purpose = "static"
	PurposeRuntime Purpose = "runtime"
	// The umbrella generation is no longer written to.
	// It is kept in the current set so that activation does not treat it as stale.
	PurposeUmbrella Purpose = "umbrella"
)

// NamePrefix is shared by every generation this layer creates.
const NamePrefix = "first-aid"

// Generation identifies one named, versioned cache store.
type Generation struct {
	Purpose Purpose
	Version string
}

// Name returns the store name of the generation, e.g. `first-aid-static-v2.1.0`.
// The umbrella generation has no purpose segment: `first-aid-v2.1.0`.
func (g Generation) Name() string {
	if g.Purpose == PurposeUmbrella {
		return NamePrefix + "-" + g.Version
	}
	return NamePrefix + "-" + string(g.Purpose) + "-" + g.Version
}

func (g Generation) String() string {
	return g.Name()
}

// ParseGeneration reverses Generation.Name.
// Names not created by this layer return an error.
func ParseGeneration(name string) (Generation, error) {
	rest, found := strings.CutPrefix(name, NamePrefix+"-")
	if !found || rest == "" {
		return Generation{}, fmt.Errorf("not a generation name: %q", name)
	}
	for _, p := range []Purpose{PurposeStatic, PurposeRuntime} {
		if version, ok := strings.CutPrefix(rest, string(p)+"-"); ok && version != "" {
			return Generation{Purpose: p, Version: version}, nil
		}
	}
	return Generation{Purpose: PurposeUmbrella, Version: rest}, nil
}

// Generations is the set of generations that are current for a single version.
type Generations struct {
	Static   Generation
	Runtime  Generation
	Umbrella Generation
}

// CurrentGenerations returns the three generations belonging to the given version.
func CurrentGenerations(version string) Generations {
	return Generations{
		Static:   Generation{Purpose: PurposeStatic, Version: version},
		Runtime:  Generation{Purpose: PurposeRuntime, Version: version},
		Umbrella: Generation{Purpose: PurposeUmbrella, Version: version},
	}
}

// Names returns the store names of all current generations.
func (g Generations) Names() []string {
	return []string{g.Static.Name(), g.Runtime.Name(), g.Umbrella.Name()}
}

// IsCurrent reports whether name is one of the current store names.
func (g Generations) IsCurrent(name string) bool {
	for _, n := range g.Names() {
		if n == name {
			return true
		}
	}
	return false
}
