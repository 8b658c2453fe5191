package rules

import (
	"slices"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/scene"
)

var (
	defaultCameras = []string{"frontShape", "perspShape", "sideShape", "topShape"}
	defaultLayers  = []string{"defaultLayer", "defaultRenderLayer"}
	utilityTypes   = []string{"place2dTexture", "place3dTexture", "file", "ramp", "checker", "noise", "bump2d",
		"layeredTexture", "multiplyDivide", "plusMinusAverage", "reverse", "condition", "blendColors", "clamp",
		"remapValue", "setRange", "colorCorrect", "luminance", "samplerInfo", "projection"}
)

// shaderBall is the swatch geometry the host keeps in every material.
const shaderBall = "shaderBallGeomShape1"

func sceneRules(Tolerances) []Rule {
	return []Rule{
		{
			Name: "references", Default: true,
			Summary: "File references other than the host's internal reference nodes.",
			Detect:  Sweep{Kinds: kinds("reference"), Deny: []string{"sharedReferenceNode", "_UNKNOWN_REF_NODE_"}}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "namespaces", Default: true,
			Summary: "Namespaces other than UI and shared.",
			Detect:  namespacesDetector(),
			Fix:     removeNamespace,
		},
		{
			Name: "unknown_nodes", Default: true,
			Summary: "Nodes whose type the host could not resolve.",
			Detect:  Sweep{Kinds: kinds("unknown")}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "unknown_plugins", Default: true,
			Summary: "Plugins the scene requires but the host does not know.",
			Detect:  pluginsDetector(),
			Fix:     removePlugin,
		},
		{
			Name: "unused_shaders", Default: true,
			Summary: "Shading engines with no members.",
			Detect:  unusedShadersDetector(),
			Fix:     deleteShadingEngine,
		},
		{
			Name: "unused_nodes", Default: true,
			Summary: "Texture and utility nodes with no connections.",
			Detect:  unusedNodesDetector(),
			Fix:     DeleteFix,
		},
		{
			Name: "animation_layers", Default: true,
			Summary: "Animation layers besides the base layer.",
			// BaseAnimation is the root animLayer. defaultLayer and
			// defaultRenderLayer are display and render layers, denied below.
			Detect:  Sweep{Kinds: kinds("animLayer"), Deny: []string{"BaseAnimation"}}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "display_layers", Default: true,
			Summary: "Display layers besides the defaults.",
			Detect:  Sweep{Kinds: kinds("displayLayer"), Deny: defaultLayers}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "render_layers", Default: true,
			Summary: "Render layers besides the defaults.",
			Detect:  Sweep{Kinds: kinds("renderLayer"), Deny: defaultLayers}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "script_nodes", Default: true,
			Summary: "Script nodes besides the scene and UI configuration scripts.",
			Detect:  Sweep{Kinds: kinds("script"), Deny: []string{"sceneConfigurationScriptNode", "uiConfigurationScriptNode"}}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "expression_nodes", Default: true,
			Summary: "Expression nodes.",
			Detect:  Sweep{Kinds: kinds("expression")}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "light_editor_nodes", Default: true,
			Summary: "Light editor nodes.",
			Detect:  Sweep{Kinds: kinds("lightEditor")}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "time_editor_nodes", Default: true,
			Summary: "Time editor nodes.",
			Detect:  Sweep{Kinds: kinds("timeEditor*")}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "cache_nodes", Default: true,
			Summary: "Cache file and cache blend nodes.",
			Detect:  Sweep{Kinds: kinds("cacheBlend", "cacheFile")}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "dag_nodes", Default: true,
			Summary: "Bare DAG nodes and DAG containers.",
			Detect:  Sweep{Kinds: kinds("dagContainer", "dagNode")}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "hypershade_nodes", Default: true,
			Summary: "Hypershade bookkeeping nodes.",
			Detect:  Sweep{Kinds: kinds(string(scene.KindAny)), NameContains: "hyperShade"}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "poly_nodes", Default: true,
			Summary: "Polygon modeling history nodes.",
			Detect:  Sweep{Kinds: kinds("poly*")}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "xgen_nodes", Default: true,
			Summary: "XGen nodes.",
			Detect:  Sweep{Kinds: kinds("xgm*")}.Detector(),
			Fix:     DeleteFix,
		},
		{
			Name: "cameras", Default: true,
			Summary: "Cameras other than the four default views, reported by transform.",
			Detect:  camerasDetector(),
			Fix:     DeleteFix,
		},
	}
}

func namespacesDetector() Detector {
	deny := []string{"UI", "shared"}
	return Detector{
		Candidates: func(s scene.Scene, _ ir.SelectionMode) ([]ir.Entity, error) {
			ns, err := s.Namespaces()
			if err != nil {
				return nil, err
			}
			out := make([]ir.Entity, len(ns))
			for i, n := range ns {
				out[i] = ir.Entity(n)
			}
			// nested namespaces first so removing a parent never renames a pending child
			return byDepth(out, ":"), nil
		},
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			if slices.Contains(deny, string(e)) {
				return nil, nil
			}
			ns, err := s.Namespaces()
			if err != nil {
				return nil, err
			}
			if !slices.Contains(ns, string(e)) {
				return nil, nil
			}
			return []ir.Entity{e}, nil
		},
	}
}

func removeNamespace(s scene.Scene, e ir.Entity) error {
	ns, err := s.Namespaces()
	if err != nil {
		return err
	}
	if !slices.Contains(ns, string(e)) {
		return nil
	}
	return s.RemoveNamespace(string(e))
}

func pluginsDetector() Detector {
	return Detector{
		Candidates: func(s scene.Scene, _ ir.SelectionMode) ([]ir.Entity, error) {
			ps, err := s.UnknownPlugins()
			if err != nil {
				return nil, err
			}
			out := make([]ir.Entity, len(ps))
			for i, p := range ps {
				out[i] = ir.Entity(p)
			}
			return out, nil
		},
		Inspect: func(_ scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			return []ir.Entity{e}, nil
		},
	}
}

func removePlugin(s scene.Scene, e ir.Entity) error {
	ps, err := s.UnknownPlugins()
	if err != nil {
		return err
	}
	if !slices.Contains(ps, string(e)) {
		return nil
	}
	return s.RemovePlugin(string(e))
}

func unusedShadersDetector() Detector {
	deny := []string{"initialParticleSE", "initialShadingGroup"}
	return Detector{
		Candidates: func(s scene.Scene, mode ir.SelectionMode) ([]ir.Entity, error) {
			return enumerate(s, mode, "shadingEngine")
		},
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			if slices.Contains(deny, string(e)) {
				return nil, nil
			}
			members, err := s.Members(e)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				if scene.ShortName(m.Node) != shaderBall {
					return nil, nil
				}
			}
			return []ir.Entity{e}, nil
		},
	}
}

// deleteShadingEngine removes the engine and the surface shaders only it uses.
func deleteShadingEngine(s scene.Scene, e ir.Entity) error {
	if !s.Exists(e) {
		return nil
	}
	shaders, err := s.Connections(e, scene.KindShader)
	if err != nil {
		return err
	}
	for _, sh := range shaders {
		users, err := s.Connections(sh, "shadingEngine")
		if err != nil {
			return err
		}
		if len(users) > 1 {
			continue
		}
		if err := deleteNode(s, sh); err != nil {
			return err
		}
	}
	return deleteNode(s, e)
}

func unusedNodesDetector() Detector {
	return Detector{
		Candidates: func(s scene.Scene, mode ir.SelectionMode) ([]ir.Entity, error) {
			return enumerate(s, mode, kinds(utilityTypes...)...)
		},
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			conns, err := s.Connections(e, scene.KindAny)
			if err != nil {
				return nil, err
			}
			if len(conns) > 0 {
				return nil, nil
			}
			return []ir.Entity{e}, nil
		},
	}
}

func camerasDetector() Detector {
	return Detector{
		Candidates: func(s scene.Scene, _ ir.SelectionMode) ([]ir.Entity, error) {
			return enumerate(s, ir.ModeScene, "camera")
		},
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			if slices.Contains(defaultCameras, scene.ShortName(e)) {
				return nil, nil
			}
			parent, ok, err := s.Parent(e)
			if err != nil {
				return nil, err
			}
			if ok {
				return []ir.Entity{parent}, nil
			}
			return []ir.Entity{e}, nil
		},
	}
}
