package rules

// Tolerances are the numeric thresholds and names rules compare against.
type Tolerances struct {
	AreaEpsilon          float64 // faces at or below this area are zero-area
	LengthEpsilon        float64 // edges at or below this length are zero-length
	TweakEpsilon         float64 // vertex tweaks above this are reported
	TransformEpsilon     float64 // TRS deviation from identity allowed by freeze_transformations
	PoleEdges            int     // vertices with more edges are poles
	FallbackShadingGroup string
	ModelTagAttribute    string
}

func DefaultTolerances() Tolerances {
	return Tolerances{
		AreaEpsilon:          1e-8,
		LengthEpsilon:        1e-8,
		TweakEpsilon:         1e-15,
		PoleEdges:            5,
		FallbackShadingGroup: "initialShadingGroup",
		ModelTagAttribute:    "mdl_path",
	}
}

// withDefaults fills zero fields; TransformEpsilon defaults to zero anyway.
func (t Tolerances) withDefaults() Tolerances {
	d := DefaultTolerances()
	if t.AreaEpsilon == 0 {
		t.AreaEpsilon = d.AreaEpsilon
	}
	if t.LengthEpsilon == 0 {
		t.LengthEpsilon = d.LengthEpsilon
	}
	if t.TweakEpsilon == 0 {
		t.TweakEpsilon = d.TweakEpsilon
	}
	if t.PoleEdges == 0 {
		t.PoleEdges = d.PoleEdges
	}
	if t.FallbackShadingGroup == "" {
		t.FallbackShadingGroup = d.FallbackShadingGroup
	}
	if t.ModelTagAttribute == "" {
		t.ModelTagAttribute = d.ModelTagAttribute
	}
	return t
}
