package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownRule   = errors.New("unknown rule")
	ErrAmbiguousRule = errors.New("ambiguous rule name")
	ErrInvalidRule   = errors.New("invalid rule")
)

// RegistryError is the only error the invocation surface returns.
type RegistryError struct {
	Name   string
	Reason string
	kind   error
}

func (e *RegistryError) Error() string { return fmt.Sprintf("rule %q: %s", e.Name, e.Reason) }

func (e *RegistryError) Is(target error) bool { return target == e.kind }

func regErr(kind error, name, format string, args ...any) *RegistryError {
	return &RegistryError{Name: name, Reason: fmt.Sprintf(format, args...), kind: kind}
}

// Builder collects rules. Build freezes them into a Registry; reloading means
// building a new Registry and swapping it in.
type Builder struct {
	rules []Rule
}

func NewBuilder() *Builder { return &Builder{} }

// Register rejects empty names, missing detectors and duplicate names
// within a category (case-insensitive).
func (b *Builder) Register(r Rule) error {
	r.Name = strings.TrimSpace(r.Name)
	r.Category = strings.TrimSpace(r.Category)
	switch {
	case r.Name == "":
		return regErr(ErrInvalidRule, r.Name, "empty name")
	case strings.Contains(r.Name, "/"):
		return regErr(ErrInvalidRule, r.Name, "name may not contain '/'")
	case r.Category == "":
		return regErr(ErrInvalidRule, r.Name, "empty category")
	case r.Detect.Candidates == nil || r.Detect.Inspect == nil:
		return regErr(ErrInvalidRule, r.Name, "missing detector")
	}
	for _, o := range b.rules {
		if eqCI(o.Category, r.Category) && eqCI(o.Name, r.Name) {
			return regErr(ErrInvalidRule, r.Name, "already registered in %s", o.Category)
		}
	}
	b.rules = append(b.rules, r)
	return nil
}

func (b *Builder) Build() *Registry {
	reg := &Registry{
		rules:      append([]Rule(nil), b.rules...),
		byName:     map[string][]int{},
		byCategory: map[string][]int{},
		catNames:   map[string]string{},
	}
	for i, r := range reg.rules {
		ck := strings.ToLower(r.Category)
		if _, ok := reg.catNames[ck]; !ok {
			reg.catNames[ck] = r.Category
			reg.categories = append(reg.categories, r.Category)
		}
		reg.byCategory[ck] = append(reg.byCategory[ck], i)
		reg.byName[strings.ToLower(r.Name)] = append(reg.byName[strings.ToLower(r.Name)], i)
	}
	return reg
}

// Registry is immutable and safe to share.
type Registry struct {
	rules      []Rule
	categories []string
	byName     map[string][]int  // lower(name) -> indices
	byCategory map[string][]int  // lower(category) -> indices
	catNames   map[string]string // lower(category) -> category
}

func (r *Registry) Len() int { return len(r.rules) }

// Categories in registration order.
func (r *Registry) Categories() []string { return append([]string(nil), r.categories...) }

// List returns every rule in registration order.
func (r *Registry) List() []Rule { return append([]Rule(nil), r.rules...) }

// Category returns the rules of one category in registration order.
func (r *Registry) Category(category string) ([]Rule, error) {
	idx, ok := r.byCategory[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return nil, regErr(ErrUnknownRule, category, "unknown category")
	}
	out := make([]Rule, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.rules[i])
	}
	return out, nil
}

// Rules lists the rule names of a category.
func (r *Registry) Rules(category string) ([]string, error) {
	rs, err := r.Category(category)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(rs))
	for i, x := range rs {
		names[i] = x.Name
	}
	return names, nil
}

// Lookup resolves "name" or "Category/name", case-insensitively. A bare name
// registered under two categories is ambiguous.
func (r *Registry) Lookup(name string) (Rule, error) {
	q := strings.TrimSpace(name)
	if cat, n, ok := strings.Cut(q, "/"); ok {
		for _, i := range r.byCategory[strings.ToLower(strings.TrimSpace(cat))] {
			if eqCI(r.rules[i].Name, n) {
				return r.rules[i], nil
			}
		}
		return Rule{}, regErr(ErrUnknownRule, name, "not registered")
	}
	idx := r.byName[strings.ToLower(q)]
	switch len(idx) {
	case 0:
		return Rule{}, regErr(ErrUnknownRule, name, "not registered")
	case 1:
		return r.rules[idx[0]], nil
	}
	cats := make([]string, len(idx))
	for k, i := range idx {
		cats[k] = r.rules[i].Category
	}
	return Rule{}, regErr(ErrAmbiguousRule, name, "registered in %s; qualify it as Category/name", strings.Join(cats, ", "))
}

func (r *Registry) Get(name string) (Rule, bool) {
	rule, err := r.Lookup(name)
	return rule, err == nil
}

func (r *Registry) IsDefault(name string) (bool, error) {
	rule, err := r.Lookup(name)
	if err != nil {
		return false, err
	}
	return rule.Default, nil
}

func (r *Registry) Detector(name string) (Detector, error) {
	rule, err := r.Lookup(name)
	if err != nil {
		return Detector{}, err
	}
	return rule.Detect, nil
}

// Remediator returns false when the rule is diagnostic only.
func (r *Registry) Remediator(name string) (Remediator, bool, error) {
	rule, err := r.Lookup(name)
	if err != nil {
		return nil, false, err
	}
	return rule.Fix, rule.Fix != nil, nil
}

func eqCI(a, b string) bool { return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) }
