// Package langtag enumerates recognized languages (spec §3 "Language tag")
// and detects which one a workspace-relative file path belongs to (spec
// §4.D). The registry is declarative data (languages.yaml), generalizing
// the teacher's single hard-coded Go configuration into a data-driven
// table that the rest of the pack's languages can share.
package langtag

import (
	_ "embed"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed languages.yaml
var registryYAML []byte

// Tag is a value-equal, hashable language identifier (spec §3).
type Tag string

// WorkspaceFolderStrategy selects how an analyzer client resolves its
// workspace folder(s) for a language (spec §4.C).
type WorkspaceFolderStrategy string

const (
	// StrategySingleRoot reports the workspace root as the single folder.
	StrategySingleRoot WorkspaceFolderStrategy = "single-root"
	// StrategyNearestMultiModuleMarker walks toward ancestors for the
	// nearest multi-module marker, falling back to the nearest module
	// marker, falling back to the workspace root.
	StrategyNearestMultiModuleMarker WorkspaceFolderStrategy = "nearest-multi-module-marker"
)

// Definition is the full per-language configuration record (spec §3).
type Definition struct {
	Tag                     Tag
	Extensions              []string
	RootMarkers             []string
	MultiModuleMarkers      []string
	WorkspaceFolderStrategy WorkspaceFolderStrategy
	Command                 string
	Args                    []string
	Env                     []string

	// ContainerImage names the Docker image the orchestrator runs when the
	// gateway is configured to isolate this language's analyzer in a
	// container instead of spawning it as a direct child (spec §4.I).
	ContainerImage string

	// TypedVariant, if set, names another Tag that files of this language
	// should route to when the content-inspection hook (§4.D) matches.
	TypedVariant Tag
	// VariantOf marks this Definition as a content-inspected variant of
	// another tag; it is never matched directly by extension.
	VariantOf Tag
}

type yamlDef struct {
	Key                     string   `yaml:"key"`
	Extensions              []string `yaml:"extensions"`
	RootMarkers             []string `yaml:"root_markers"`
	MultiModuleMarkers      []string `yaml:"multi_module_markers"`
	WorkspaceFolderStrategy string   `yaml:"workspace_folder_strategy"`
	Command                 string   `yaml:"command"`
	Args                    []string `yaml:"args"`
	Env                     []string `yaml:"env"`
	ContainerImage          string   `yaml:"container_image"`
	TypedVariant            string   `yaml:"typed_variant"`
	VariantOf               string   `yaml:"variant_of"`
}

type yamlRoot struct {
	Languages []yamlDef `yaml:"languages"`
}

// Registry is a loaded, queryable language table.
type Registry struct {
	defs     map[Tag]Definition
	byExt    map[string]Tag // extension -> base (non-variant) tag
	order    []Tag          // stable iteration order, registry file order
	typedRe  *regexp.Regexp
}

// typedCommentPattern matches Sorbet's "# typed: true|strict|strong"
// magic comment, per original_source/lsproxy/src/lsp/languages/
// ruby_sorbet.rs.
var typedCommentPattern = regexp.MustCompile(`^\s*#\s*typed:\s*(true|strict|strong)\s*$`)

// Load parses the embedded languages.yaml into a Registry.
func Load() (*Registry, error) {
	var root yamlRoot
	if err := yaml.Unmarshal(registryYAML, &root); err != nil {
		return nil, err
	}
	r := &Registry{
		defs:    make(map[Tag]Definition, len(root.Languages)),
		byExt:   make(map[string]Tag),
		typedRe: typedCommentPattern,
	}
	for _, d := range root.Languages {
		tag := Tag(d.Key)
		def := Definition{
			Tag:                     tag,
			Extensions:              d.Extensions,
			RootMarkers:             d.RootMarkers,
			MultiModuleMarkers:      d.MultiModuleMarkers,
			WorkspaceFolderStrategy: WorkspaceFolderStrategy(d.WorkspaceFolderStrategy),
			Command:                 d.Command,
			Args:                    d.Args,
			Env:                     d.Env,
			ContainerImage:          d.ContainerImage,
			TypedVariant:            Tag(d.TypedVariant),
			VariantOf:               Tag(d.VariantOf),
		}
		r.defs[tag] = def
		r.order = append(r.order, tag)
		if def.VariantOf == "" {
			for _, ext := range def.Extensions {
				r.byExt[strings.ToLower(ext)] = tag
			}
		}
	}
	return r, nil
}

// All returns every definition in registry-file order.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.defs[t])
	}
	return out
}

// Get looks up a Definition by tag.
func (r *Registry) Get(tag Tag) (Definition, bool) {
	d, ok := r.defs[tag]
	return d, ok
}

// ExtensionOf returns the base tag registered for a file extension
// (including the leading dot), independent of content inspection.
func (r *Registry) ExtensionOf(ext string) (Tag, bool) {
	t, ok := r.byExt[strings.ToLower(ext)]
	return t, ok
}

// Detect returns the language tag for a workspace-relative path. peek, if
// non-nil, is invoked lazily only when the matched base language declares a
// TypedVariant, to read the first ten lines for the content-inspection
// rule (spec §4.D). Detect is injective on extensions modulo that rule
// (invariant 4).
func (r *Registry) Detect(relPath string, peek func() []byte) (Tag, bool) {
	ext := extOf(relPath)
	if ext == "" {
		return "", false
	}
	base, ok := r.byExt[ext]
	if !ok {
		return "", false
	}
	def := r.defs[base]
	if def.TypedVariant != "" && peek != nil {
		if variant, matched := r.detectTypedVariant(def, peek()); matched {
			return variant, true
		}
	}
	return base, true
}

func (r *Registry) detectTypedVariant(base Definition, content []byte) (Tag, bool) {
	if content == nil {
		return "", false
	}
	lines := strings.Split(string(content), "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		if r.typedRe.MatchString(line) {
			if _, ok := r.defs[base.TypedVariant]; ok {
				return base.TypedVariant, true
			}
		}
	}
	return "", false
}

func extOf(relPath string) string {
	idx := strings.LastIndexByte(relPath, '.')
	slash := strings.LastIndexByte(relPath, '/')
	if idx <= slash {
		return ""
	}
	return strings.ToLower(relPath[idx:])
}
