// Package hooks holds the per-category hook collections that modules fill in
// while they initialize.
//
// Dispatch order within a category is the reverse of registration order: the
// hook registered last runs first. Modules rely on this for coarse sequencing,
// so it is part of the contract. Collections are only written before Freeze and
// only read by the event loop afterwards, so no locking is needed.
package hooks

import (
	"fmt"
	"iter"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

// Category names a hook collection.
type Category string

const (
	CategoryDestruct Category = "destruct"
	CategoryWantExit Category = "want_exit"
	CategoryCanExit  Category = "can_exit"
	CategoryReload   Category = "reload"
	CategoryPoll     Category = "poll"
	CategoryEachTick Category = "each_tick"
)

// Registry owns one ordered collection per hook category.
type Registry struct {
	destructors []domain.Destructor
	wantExit    []domain.ExitNotifier
	canExit     []domain.ExitVoter
	reload      []domain.Reloader
	poll        []domain.Pollable
	eachTick    []domain.TickHook
	frozen      bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Freeze makes the registry read-only. Called once before the first tick.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	return r.frozen
}

func (r *Registry) mustBeOpen(c Category) {
	if r.frozen {
		panic(fmt.Sprintf("hooks: %s hook registered after the event loop started", c))
	}
}

// OnDestruct registers a teardown hook.
func (r *Registry) OnDestruct(h domain.Destructor) {
	r.mustBeOpen(CategoryDestruct)
	r.destructors = append(r.destructors, h)
}

// OnWantExit registers a hook told once that termination began.
func (r *Registry) OnWantExit(h domain.ExitNotifier) {
	r.mustBeOpen(CategoryWantExit)
	r.wantExit = append(r.wantExit, h)
}

// OnCanExit registers a draining voter.
func (r *Registry) OnCanExit(h domain.ExitVoter) {
	r.mustBeOpen(CategoryCanExit)
	r.canExit = append(r.canExit, h)
}

// OnReload registers a reload hook.
func (r *Registry) OnReload(h domain.Reloader) {
	r.mustBeOpen(CategoryReload)
	r.reload = append(r.reload, h)
}

// OnPoll registers a describe/serve pair.
func (r *Registry) OnPoll(h domain.Pollable) {
	r.mustBeOpen(CategoryPoll)
	r.poll = append(r.poll, h)
}

// OnEachTick registers a per-tick hook.
func (r *Registry) OnEachTick(h domain.TickHook) {
	r.mustBeOpen(CategoryEachTick)
	r.eachTick = append(r.eachTick, h)
}

// Destructors yields teardown hooks, last registered first.
func (r *Registry) Destructors() iter.Seq[domain.Destructor] {
	return backward(r.destructors)
}

// ExitNotifiers yields want-exit hooks, last registered first.
func (r *Registry) ExitNotifiers() iter.Seq[domain.ExitNotifier] {
	return backward(r.wantExit)
}

// ExitVoters yields can-exit voters, last registered first.
func (r *Registry) ExitVoters() iter.Seq[domain.ExitVoter] {
	return backward(r.canExit)
}

// Reloaders yields reload hooks, last registered first.
func (r *Registry) Reloaders() iter.Seq[domain.Reloader] {
	return backward(r.reload)
}

// Pollables yields poll hooks, last registered first.
func (r *Registry) Pollables() iter.Seq[domain.Pollable] {
	return backward(r.poll)
}

// TickHooks yields each-tick hooks, last registered first.
func (r *Registry) TickHooks() iter.Seq[domain.TickHook] {
	return backward(r.eachTick)
}

// Counts returns the number of hooks per category.
func (r *Registry) Counts() map[Category]int {
	return map[Category]int{
		CategoryDestruct: len(r.destructors),
		CategoryWantExit: len(r.wantExit),
		CategoryCanExit:  len(r.canExit),
		CategoryReload:   len(r.reload),
		CategoryPoll:     len(r.poll),
		CategoryEachTick: len(r.eachTick),
	}
}

func backward[T any](s []T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := len(s) - 1; i >= 0; i-- {
			if !yield(s[i]) {
				return
			}
		}
	}
}
