// Package selection tracks the selected elements of a diagram and keeps the
// "selected" overlay in sync with it.
package selection

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/feedback"
)

// SelectedClass is the CSS class applied to selected elements.
const SelectedClass = "selected"

// FeedbackRegistry is the part of feedback.Registry the service needs.
type FeedbackRegistry interface {
	Register(emitter any, actions ...domain.Action) error
}

// Service owns the selection of one session.
// It registers itself as the feedback emitter for the selection overlay.
type Service struct {
	updateMu sync.Mutex // serializes selection changes

	mu        sync.Mutex
	selected  []string
	onChanged []func(ids []string)

	feedback FeedbackRegistry
}

// New creates a selection service contributing its overlay through reg.
func New(reg FeedbackRegistry) *Service {
	return &Service{feedback: reg}
}

// OnChange registers fn to run after the selection changes.
func (s *Service) OnChange(fn func(ids []string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChanged = append(s.onChanged, fn)
}

// Selected returns the selected IDs in selection order.
func (s *Service) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.selected)
}

// IsSelected reports whether id is selected.
func (s *Service) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.selected, id)
}

// Select replaces the selection. Empty and duplicate IDs are ignored.
func (s *Service) Select(ids ...string) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	return s.update(dedupe(ids))
}

// Toggle adds or removes id from the selection.
func (s *Service) Toggle(id string) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	next := s.Selected()
	if i := slices.Index(next, id); i >= 0 {
		next = slices.Delete(next, i, i+1)
	} else if id != "" {
		next = append(next, id)
	}
	return s.update(next)
}

// Clear empties the selection.
func (s *Service) Clear() error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	return s.update(nil)
}

// RootChanged drops selected IDs that no longer exist in root.
func (s *Service) RootChanged(ctx context.Context, root *domain.Element) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	ids := root.IDs()
	kept := slices.DeleteFunc(s.Selected(), func(id string) bool {
		_, ok := ids[id]
		return !ok
	})
	_ = s.update(kept)
}

// update must be called with updateMu held.
func (s *Service) update(ids []string) error {
	s.mu.Lock()
	if slices.Equal(s.selected, ids) {
		s.mu.Unlock()
		return nil
	}
	s.selected = slices.Clone(ids)
	listeners := slices.Clone(s.onChanged)
	s.mu.Unlock()

	var actions []domain.Action
	if len(ids) > 0 {
		actions = append(actions, feedback.NewApplyCSSClass(SelectedClass, ids...))
	}
	if s.feedback != nil {
		if err := s.feedback.Register(s, actions...); err != nil {
			return err
		}
	}
	for _, fn := range listeners {
		fn(slices.Clone(ids))
	}
	return nil
}

func dedupe(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
