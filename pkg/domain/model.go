package domain

import "slices"

// Element is one node of the model tree.
// Authoritative data lives in ID, Type, Attributes and the non-overlay Children.
// CSSClasses, Features, Overlay and handle children are overlay state owned by feedback effects.
type Element struct {
	ID   string `json:"id" yaml:"id" mapstructure:"id"`
	Type string `json:"type" yaml:"type" mapstructure:"type"`

	// CSSClasses are presentation tags (e.g. "selected", "highlight").
	CSSClasses []string `json:"cssClasses,omitempty" yaml:"cssClasses,omitempty" mapstructure:"cssClasses"`

	// Features are capability flags (e.g. "connectable", "deletable").
	Features map[string]bool `json:"features,omitempty" yaml:"features,omitempty" mapstructure:"features"`

	// Overlay holds overlay-only string attributes (e.g. "cursor").
	Overlay map[string]string `json:"overlay,omitempty" yaml:"overlay,omitempty" mapstructure:"overlay"`

	// Attributes holds authoritative, engine-owned data (position, size, label...).
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty" mapstructure:"attributes"`

	Children []*Element `json:"children,omitempty" yaml:"children,omitempty" mapstructure:"children"`
}

// NewElement creates an element with the given ID, type and children.
func NewElement(id, typ string, children ...*Element) *Element {
	return &Element{ID: id, Type: typ, Children: children}
}

// Clone returns a deep copy of the subtree rooted at e.
// Attribute values are copied shallowly.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	out := &Element{
		ID:         e.ID,
		Type:       e.Type,
		CSSClasses: slices.Clone(e.CSSClasses),
	}
	if e.Features != nil {
		out.Features = make(map[string]bool, len(e.Features))
		for k, v := range e.Features {
			out.Features[k] = v
		}
	}
	if e.Overlay != nil {
		out.Overlay = make(map[string]string, len(e.Overlay))
		for k, v := range e.Overlay {
			out.Overlay[k] = v
		}
	}
	if e.Attributes != nil {
		out.Attributes = make(map[string]any, len(e.Attributes))
		for k, v := range e.Attributes {
			out.Attributes[k] = v
		}
	}
	if e.Children != nil {
		out.Children = make([]*Element, len(e.Children))
		for i, c := range e.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Walk visits e and its descendants depth-first, parents before children.
// Returning false from fn stops descending into that element's children.
func (e *Element) Walk(fn func(*Element) bool) {
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// Find returns the element with the given ID in the subtree, or nil.
func (e *Element) Find(id string) *Element {
	var found *Element
	e.Walk(func(el *Element) bool {
		if found != nil {
			return false
		}
		if el.ID == id {
			found = el
			return false
		}
		return true
	})
	return found
}

// IDs returns the set of element IDs in the subtree.
func (e *Element) IDs() map[string]struct{} {
	ids := make(map[string]struct{})
	e.Walk(func(el *Element) bool {
		ids[el.ID] = struct{}{}
		return true
	})
	return ids
}

// HasClass reports whether the element carries the CSS class.
func (e *Element) HasClass(class string) bool {
	return slices.Contains(e.CSSClasses, class)
}

// AddClass adds the CSS class if absent.
func (e *Element) AddClass(class string) {
	if !e.HasClass(class) {
		e.CSSClasses = append(e.CSSClasses, class)
	}
}

// RemoveClass removes every occurrence of the CSS class.
func (e *Element) RemoveClass(class string) {
	e.CSSClasses = slices.DeleteFunc(e.CSSClasses, func(c string) bool { return c == class })
	if len(e.CSSClasses) == 0 {
		e.CSSClasses = nil
	}
}

// HasFeature reports whether the capability flag is set.
func (e *Element) HasFeature(name string) bool {
	return e.Features[name]
}

// SetFeature sets or clears a capability flag.
func (e *Element) SetFeature(name string, enabled bool) {
	if !enabled {
		delete(e.Features, name)
		if len(e.Features) == 0 {
			e.Features = nil
		}
		return
	}
	if e.Features == nil {
		e.Features = make(map[string]bool)
	}
	e.Features[name] = true
}

// SetOverlay sets an overlay attribute. An empty value removes it.
func (e *Element) SetOverlay(key, value string) {
	if value == "" {
		delete(e.Overlay, key)
		if len(e.Overlay) == 0 {
			e.Overlay = nil
		}
		return
	}
	if e.Overlay == nil {
		e.Overlay = make(map[string]string)
	}
	e.Overlay[key] = value
}
