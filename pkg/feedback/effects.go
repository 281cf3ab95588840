package feedback

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// Effect is the executable form of a feedback action.
// Apply mutates the tree it is given in place; it must be idempotent and
// touch only the overlay state it owns.
type Effect struct {
	Kind     string
	Priority int
	Apply    func(root *domain.Element) error
}

// EffectFor resolves a built-in feedback action to its effect.
// It reports false for actions outside the closed table.
func EffectFor(a domain.Action) (Effect, bool) {
	switch v := a.(type) {
	case ShowHandles:
		return Effect{v.Kind(), priority(v.Priority, PriorityHandles), v.apply}, true
	case HideHandles:
		return Effect{v.Kind(), priority(v.Priority, PriorityHandles), v.apply}, true
	case SetCapability:
		return Effect{v.Kind(), priority(v.Priority, PriorityCapability), v.apply}, true
	case ApplyCSSClass:
		return Effect{v.Kind(), priority(v.Priority, PriorityPresentation), v.apply}, true
	case RemoveCSSClass:
		return Effect{v.Kind(), priority(v.Priority, PriorityPresentation), v.apply}, true
	case HighlightCapable:
		return Effect{v.Kind(), priority(v.Priority, PriorityPresentation), v.apply}, true
	case SetCursor:
		return Effect{v.Kind(), priority(v.Priority, PriorityPresentation), v.apply}, true
	}
	return Effect{}, false
}

func priority(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

const handleSep = "__handle_"

// HandleID returns the ID of the handle child at pos of the element id.
func HandleID(id, pos string) string {
	return id + handleSep + pos
}

// ParseHandleID splits a handle ID into its owner element and position.
func ParseHandleID(id string) (owner, pos string, ok bool) {
	owner, pos, ok = strings.Cut(id, handleSep)
	if !ok || owner == "" || pos == "" {
		return "", "", false
	}
	return owner, pos, true
}

func isHandle(e *domain.Element) bool {
	return e.Type == HandleType
}

// each calls fn for every listed element present in the tree. Missing IDs are skipped.
func each(root *domain.Element, ids []string, fn func(*domain.Element)) {
	for _, id := range ids {
		if el := root.Find(id); el != nil {
			fn(el)
		}
	}
}

// all calls fn for every non-handle element of the tree.
func all(root *domain.Element, fn func(*domain.Element)) {
	root.Walk(func(el *domain.Element) bool {
		if isHandle(el) {
			return false
		}
		fn(el)
		return true
	})
}

func (a ShowHandles) apply(root *domain.Element) error {
	positions := a.Positions
	if len(positions) == 0 {
		positions = DefaultHandlePositions
	}
	each(root, a.ElementIDs, func(el *domain.Element) {
		for _, pos := range positions {
			id := HandleID(el.ID, pos)
			exists := slices.ContainsFunc(el.Children, func(c *domain.Element) bool { return c.ID == id })
			if exists {
				continue
			}
			handle := domain.NewElement(id, HandleType)
			handle.Attributes = map[string]any{"position": pos, "owner": el.ID}
			el.Children = append(el.Children, handle)
		}
	})
	return nil
}

func (a HideHandles) apply(root *domain.Element) error {
	strip := func(el *domain.Element) {
		el.Children = slices.DeleteFunc(el.Children, isHandle)
		if len(el.Children) == 0 {
			el.Children = nil
		}
	}
	if len(a.ElementIDs) == 0 {
		all(root, strip)
		return nil
	}
	each(root, a.ElementIDs, strip)
	return nil
}

func (a SetCapability) apply(root *domain.Element) error {
	if a.Feature == "" {
		return fmt.Errorf("%w: %s without feature", domain.ErrInvalidPayload, a.Kind())
	}
	set := func(el *domain.Element) { el.SetFeature(a.Feature, a.Enabled) }
	if len(a.ElementIDs) == 0 && len(a.ElementTypes) == 0 {
		all(root, set)
		return nil
	}
	each(root, a.ElementIDs, set)
	if len(a.ElementTypes) > 0 {
		all(root, func(el *domain.Element) {
			if slices.Contains(a.ElementTypes, el.Type) {
				set(el)
			}
		})
	}
	return nil
}

func (a ApplyCSSClass) apply(root *domain.Element) error {
	if a.Class == "" {
		return fmt.Errorf("%w: %s without class", domain.ErrInvalidPayload, a.Kind())
	}
	each(root, a.ElementIDs, func(el *domain.Element) { el.AddClass(a.Class) })
	return nil
}

func (a RemoveCSSClass) apply(root *domain.Element) error {
	if a.Class == "" {
		return fmt.Errorf("%w: %s without class", domain.ErrInvalidPayload, a.Kind())
	}
	remove := func(el *domain.Element) { el.RemoveClass(a.Class) }
	if len(a.ElementIDs) == 0 {
		all(root, remove)
		return nil
	}
	each(root, a.ElementIDs, remove)
	return nil
}

func (a HighlightCapable) apply(root *domain.Element) error {
	if a.Feature == "" || a.Class == "" {
		return fmt.Errorf("%w: %s needs feature and class", domain.ErrInvalidPayload, a.Kind())
	}
	all(root, func(el *domain.Element) {
		if el.HasFeature(a.Feature) {
			el.AddClass(a.Class)
		}
	})
	return nil
}

func (a SetCursor) apply(root *domain.Element) error {
	target := root
	if a.ElementID != "" {
		target = root.Find(a.ElementID)
	}
	if target == nil {
		return nil
	}
	target.SetOverlay("cursor", a.Cursor)
	return nil
}
