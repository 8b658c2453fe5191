// Package runner executes rules against a scene: detection, remediation,
// per-entity isolation, progress and reporting.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/progress"
	"github.com/gregoiredehame/checker/internal/rules"
	"github.com/gregoiredehame/checker/internal/scene"
	"github.com/gregoiredehame/checker/internal/storage"
)

// Sink receives every finished rule result.
type Sink interface {
	Emit(display string, findings []ir.Entity, elapsed time.Duration, status ir.Status)
}

type nopSink struct{}

func (nopSink) Emit(string, []ir.Entity, time.Duration, ir.Status) {}

// Selection picks which rules a category or full run executes.
type Selection string

const (
	SelectPreset Selection = "preset"
	SelectAll    Selection = "all"
	SelectNone   Selection = "none"
)

// ParseSelection accepts preset|all|none; empty means preset.
func ParseSelection(s string) (Selection, error) {
	switch Selection(s) {
	case "", SelectPreset:
		return SelectPreset, nil
	case SelectAll, SelectNone:
		return Selection(s), nil
	}
	return "", fmt.Errorf("unknown rule selection %q (want preset, all or none)", s)
}

type Runner struct {
	holder  *Holder
	scene   scene.Scene
	sink    Sink
	log     *slog.Logger
	ind     progress.Indicator
	batch   bool
	sel     Selection
	enable  []string
	disable []string
	waivers []storage.Waiver
}

type Option func(*Runner)

func WithSink(s Sink) Option { return func(r *Runner) { r.sink = s } }

func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.log = l } }

func WithIndicator(ind progress.Indicator) Option { return func(r *Runner) { r.ind = ind } }

// WithBatch marks a non-interactive process: the indicator is never drawn.
func WithBatch(batch bool) Option { return func(r *Runner) { r.batch = batch } }

// WithSelection sets the rule selection for category and full runs. enable
// and disable take bare or "Category/name" rule names and apply after sel.
func WithSelection(sel Selection, enable, disable []string) Option {
	return func(r *Runner) {
		r.sel = sel
		r.enable = enable
		r.disable = disable
	}
}

// WithWaivers filters findings through active waivers.
func WithWaivers(ws []storage.Waiver) Option { return func(r *Runner) { r.waivers = ws } }

// WithHolder shares a registry holder so a watcher can swap rules under the runner.
func WithHolder(h *Holder) Option { return func(r *Runner) { r.holder = h } }

func New(reg *rules.Registry, s scene.Scene, opts ...Option) *Runner {
	r := &Runner{
		scene: s,
		sink:  nopSink{},
		log:   slog.Default(),
		ind:   progress.Nop{},
		sel:   SelectPreset,
	}
	for _, o := range opts {
		o(r)
	}
	if r.holder == nil {
		r.holder = NewHolder(reg)
	}
	return r
}

// Registry is the registry the next invocation will use.
func (r *Runner) Registry() *rules.Registry { return r.holder.Load() }

func (r *Runner) RunRule(ctx context.Context, name string, mode ir.SelectionMode, verbose bool) (ir.RunResult, error) {
	return r.single(ctx, ir.ActionRun, name, mode, verbose)
}

// FixRule detects, remediates the findings, then detects again.
func (r *Runner) FixRule(ctx context.Context, name string, mode ir.SelectionMode, verbose bool) (ir.RunResult, error) {
	return r.single(ctx, ir.ActionFix, name, mode, verbose)
}

func (r *Runner) RunCategory(ctx context.Context, category string, mode ir.SelectionMode, verbose bool) ([]ir.RunResult, error) {
	return r.many(ctx, ir.ActionRun, category, mode, verbose)
}

func (r *Runner) FixCategory(ctx context.Context, category string, mode ir.SelectionMode, verbose bool) ([]ir.RunResult, error) {
	return r.many(ctx, ir.ActionFix, category, mode, verbose)
}

func (r *Runner) RunAll(ctx context.Context, mode ir.SelectionMode, verbose bool) ([]ir.RunResult, error) {
	return r.many(ctx, ir.ActionRun, "", mode, verbose)
}

func (r *Runner) FixAll(ctx context.Context, mode ir.SelectionMode, verbose bool) ([]ir.RunResult, error) {
	return r.many(ctx, ir.ActionFix, "", mode, verbose)
}

func (r *Runner) single(ctx context.Context, action ir.Action, name string, mode ir.SelectionMode, verbose bool) (ir.RunResult, error) {
	rule, err := r.holder.Load().Lookup(name)
	if err != nil {
		return ir.RunResult{}, err
	}
	return r.invoke(ctx, action, rule, mode, verbose), nil
}

// many runs the selected rules of a category (all categories when empty) in
// registry order and stops after the first cancelled result.
func (r *Runner) many(ctx context.Context, action ir.Action, category string, mode ir.SelectionMode, verbose bool) ([]ir.RunResult, error) {
	reg := r.holder.Load()
	var list []rules.Rule
	if category == "" {
		list = reg.List()
	} else {
		var err error
		if list, err = reg.Category(category); err != nil {
			return nil, err
		}
	}
	picked, err := r.selected(reg, list)
	if err != nil {
		return nil, err
	}
	out := make([]ir.RunResult, 0, len(picked))
	for _, rule := range picked {
		var res ir.RunResult
		if ctx.Err() != nil {
			res = r.abandon(action, rule)
		} else {
			res = r.invoke(ctx, action, rule, mode, verbose)
		}
		out = append(out, res)
		if res.Cancelled {
			r.log.Info("batch cancelled", "rule", rule.Qualified(), "ran", len(out), "selected", len(picked))
			break
		}
	}
	return out, nil
}

func (r *Runner) selected(reg *rules.Registry, list []rules.Rule) ([]rules.Rule, error) {
	on := map[string]bool{}
	for _, rule := range list {
		switch r.sel {
		case SelectAll:
			on[rule.Qualified()] = true
		case SelectNone:
		default:
			on[rule.Qualified()] = rule.Default
		}
	}
	for _, name := range r.enable {
		rule, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		on[rule.Qualified()] = true
	}
	for _, name := range r.disable {
		rule, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		on[rule.Qualified()] = false
	}
	return slices.DeleteFunc(slices.Clone(list), func(rule rules.Rule) bool { return !on[rule.Qualified()] }), nil
}

// abandon reports rule as cancelled without touching the scene.
func (r *Runner) abandon(action ir.Action, rule rules.Rule) ir.RunResult {
	res := ir.RunResult{
		Rule:      rule.Name,
		Category:  rule.Category,
		Display:   rule.Display(),
		Action:    action,
		Findings:  []ir.Entity{},
		Cancelled: true,
	}
	r.sink.Emit(res.Display, res.Findings, 0, res.Status())
	return res
}

func (r *Runner) invoke(ctx context.Context, action ir.Action, rule rules.Rule, mode ir.SelectionMode, verbose bool) ir.RunResult {
	if ctx.Err() != nil {
		return r.abandon(action, rule)
	}
	start := time.Now()
	res := ir.RunResult{
		Rule:     rule.Name,
		Category: rule.Category,
		Display:  rule.Display(),
		Action:   action,
	}
	show := verbose && !r.batch

	pass := r.detect(ctx, rule, mode, show)
	res.Failures = pass.failures
	res.Findings, res.Waived = rules.ApplyWaivers(rule.Name, pass.findings, r.waivers)
	res.Cancelled = pass.cancelled

	if action == ir.ActionFix && !res.Cancelled && rule.Fixable() {
		r.remediate(ctx, rule, mode, show, &res)
	}

	res.Elapsed = time.Since(start)
	r.sink.Emit(res.Display, res.Findings, res.Elapsed, res.Status())
	return res
}

type detection struct {
	findings  []ir.Entity
	failures  []ir.EntityFailure
	cancelled bool
}

func (r *Runner) detect(ctx context.Context, rule rules.Rule, mode ir.SelectionMode, show bool) detection {
	d := detection{findings: []ir.Entity{}}
	cands, err := guard(func() ([]ir.Entity, error) { return rule.Detect.Candidates(r.scene, mode) })
	if err != nil {
		d.failures = append(d.failures, r.failure(rule, "enumerate", "", err))
		return d
	}
	fs := ir.NewFindingSet()
	opts := progress.Options{Total: len(cands), Title: "Get " + rule.Display(), Enabled: show, Indicator: r.ind}
	err = progress.Run(ctx, opts, func(h *progress.Harness) error {
		for _, c := range cands {
			if !h.Advance(string(c)) {
				d.cancelled = true
				return nil
			}
			found, err := guard(func() ([]ir.Entity, error) { return rule.Detect.Inspect(r.scene, c) })
			if err != nil {
				d.failures = append(d.failures, r.failure(rule, "detect", c, err))
				continue
			}
			fs.Add(found...)
		}
		return nil
	})
	if err != nil {
		d.failures = append(d.failures, r.failure(rule, "detect", "", err))
	}
	// nothing to advance over, so the harness never saw the cancel
	if len(cands) == 0 && ctx.Err() != nil {
		d.cancelled = true
	}
	d.findings = fs.Entities()
	return d
}

// remediate applies the fix to exactly the detected set, then detects again.
// A cancelled fix pass reports the entities it did not get to.
func (r *Runner) remediate(ctx context.Context, rule rules.Rule, mode ir.SelectionMode, show bool, res *ir.RunResult) {
	initial := res.Findings
	res.Initial = initial
	if len(initial) == 0 {
		return
	}
	done := 0
	opts := progress.Options{Total: len(initial), Title: "Fix " + rule.Display(), Enabled: show, Indicator: r.ind}
	err := progress.Run(ctx, opts, func(h *progress.Harness) error {
		for _, e := range initial {
			if !h.Advance(string(e)) {
				res.Cancelled = true
				return nil
			}
			done++
			if _, err := guard(func() (struct{}, error) { return struct{}{}, rule.Fix(r.scene, e) }); err != nil {
				res.Failures = append(res.Failures, r.failure(rule, "fix", e, err))
			}
		}
		return nil
	})
	if err != nil {
		res.Failures = append(res.Failures, r.failure(rule, "fix", "", err))
	}
	if res.Cancelled {
		res.Findings = slices.Clone(initial[done:])
		return
	}

	again := r.detect(ctx, rule, mode, show)
	res.Failures = append(res.Failures, again.failures...)
	var waived int
	res.Findings, waived = rules.ApplyWaivers(rule.Name, again.findings, r.waivers)
	res.Waived = max(res.Waived, waived)
	res.Cancelled = again.cancelled
}

var errPanic = errors.New("panic")

// guard turns a panic in fn into an error.
func guard[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", errPanic, p)
		}
	}()
	return fn()
}

func classify(err error) ir.FailureKind {
	switch {
	case errors.Is(err, scene.ErrEntityUnavailable):
		return ir.FailureUnavailable
	case errors.Is(err, scene.ErrMutationRefused):
		return ir.FailureRefused
	}
	return ir.FailureUnexpected
}

func (r *Runner) failure(rule rules.Rule, stage string, e ir.Entity, err error) ir.EntityFailure {
	kind := classify(err)
	level := slog.LevelWarn
	switch {
	case stage == "enumerate":
		level = slog.LevelError
	case stage == "fix" && kind == ir.FailureUnavailable:
		level = slog.LevelInfo
	}
	r.log.Log(context.Background(), level, "rule entity failed",
		"rule", rule.Qualified(), "stage", stage, "entity", string(e), "kind", string(kind), "err", err)
	return ir.EntityFailure{Entity: e, Stage: stage, Kind: kind, Message: err.Error()}
}
