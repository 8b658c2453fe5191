package rules

// Categories in catalog order.
const (
	CategoryScene    = "Scene"
	CategoryObjects  = "Objects"
	CategoryTopology = "Topology"
	CategoryUV       = "UV"
	CategoryShaders  = "Shaders"
)

// Catalog builds the registry of built-in rules followed by extra, typically
// rules loaded from YAML packs. Extra rules keep their own category.
func Catalog(tol Tolerances, extra ...Rule) (*Registry, error) {
	tol = tol.withDefaults()
	b := NewBuilder()
	table := []struct {
		category string
		rules    []Rule
	}{
		{CategoryScene, sceneRules(tol)},
		{CategoryObjects, objectRules(tol)},
		{CategoryTopology, topologyRules(tol)},
		{CategoryUV, uvRules(tol)},
		{CategoryShaders, shaderRules(tol)},
	}
	for _, t := range table {
		for _, r := range t.rules {
			r.Category = t.category
			if err := b.Register(r); err != nil {
				return nil, err
			}
		}
	}
	for _, r := range extra {
		if err := b.Register(r); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
