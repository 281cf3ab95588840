package feedback

import "github.com/aretw0/lattice/pkg/domain"

// Built-in feedback kinds.
const (
	KindShowHandles      = "showHandles"
	KindHideHandles      = "hideHandles"
	KindSetCapability    = "setCapability"
	KindApplyCSSClass    = "applyCssClass"
	KindRemoveCSSClass   = "removeCssClass"
	KindHighlightCapable = "highlightCapable"
	KindSetCursor        = "setCursor"
)

// Default priorities. Higher runs first.
const (
	PriorityCapability   = 20
	PriorityHandles      = 10
	PriorityPresentation = 0
)

// HandleType is the element type of handle children added by ShowHandles.
const HandleType = "handle"

// DefaultHandlePositions are used when ShowHandles names no positions.
var DefaultHandlePositions = []string{"nw", "ne", "se", "sw"}

// ShowHandles adds resize handles as children of the target elements.
type ShowHandles struct {
	ElementIDs []string `json:"elementIds" yaml:"elementIds" mapstructure:"elementIds"`
	Positions  []string `json:"positions,omitempty" yaml:"positions,omitempty" mapstructure:"positions"`
	Priority   *int     `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`
}

func (ShowHandles) Kind() string { return KindShowHandles }

// HideHandles removes handle children. No element IDs means every element.
type HideHandles struct {
	ElementIDs []string `json:"elementIds,omitempty" yaml:"elementIds,omitempty" mapstructure:"elementIds"`
	Priority   *int     `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`
}

func (HideHandles) Kind() string { return KindHideHandles }

// SetCapability sets or clears a capability flag.
// Targets are the listed IDs plus every element of the listed types; with neither, every element.
type SetCapability struct {
	Feature      string   `json:"feature" yaml:"feature" mapstructure:"feature"`
	Enabled      bool     `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ElementIDs   []string `json:"elementIds,omitempty" yaml:"elementIds,omitempty" mapstructure:"elementIds"`
	ElementTypes []string `json:"elementTypes,omitempty" yaml:"elementTypes,omitempty" mapstructure:"elementTypes"`
	Priority     *int     `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`
}

func (SetCapability) Kind() string { return KindSetCapability }

// ApplyCSSClass adds a CSS class to the target elements.
type ApplyCSSClass struct {
	ElementIDs []string `json:"elementIds" yaml:"elementIds" mapstructure:"elementIds"`
	Class      string   `json:"class" yaml:"class" mapstructure:"class"`
	Priority   *int     `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`
}

func (ApplyCSSClass) Kind() string { return KindApplyCSSClass }

// RemoveCSSClass removes a CSS class. No element IDs means every element.
type RemoveCSSClass struct {
	ElementIDs []string `json:"elementIds,omitempty" yaml:"elementIds,omitempty" mapstructure:"elementIds"`
	Class      string   `json:"class" yaml:"class" mapstructure:"class"`
	Priority   *int     `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`
}

func (RemoveCSSClass) Kind() string { return KindRemoveCSSClass }

// HighlightCapable adds Class to every element that carries Feature.
type HighlightCapable struct {
	Feature  string `json:"feature" yaml:"feature" mapstructure:"feature"`
	Class    string `json:"class" yaml:"class" mapstructure:"class"`
	Priority *int   `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`
}

func (HighlightCapable) Kind() string { return KindHighlightCapable }

// SetCursor sets the cursor overlay of one element, or of the root when ElementID is empty.
// An empty Cursor restores the default.
type SetCursor struct {
	ElementID string `json:"elementId,omitempty" yaml:"elementId,omitempty" mapstructure:"elementId"`
	Cursor    string `json:"cursor" yaml:"cursor" mapstructure:"cursor"`
	Priority  *int   `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`
}

func (SetCursor) Kind() string { return KindSetCursor }

// NewShowHandles returns a ShowHandles for the given elements at the default priority.
func NewShowHandles(ids ...string) ShowHandles {
	return ShowHandles{ElementIDs: ids, Priority: prio(PriorityHandles)}
}

// NewHideHandles returns a HideHandles for the given elements at the default priority.
func NewHideHandles(ids ...string) HideHandles {
	return HideHandles{ElementIDs: ids, Priority: prio(PriorityHandles)}
}

// NewSetCapability returns a SetCapability at the default priority.
func NewSetCapability(feature string, enabled bool, ids ...string) SetCapability {
	return SetCapability{Feature: feature, Enabled: enabled, ElementIDs: ids, Priority: prio(PriorityCapability)}
}

// NewApplyCSSClass returns an ApplyCSSClass at the default priority.
func NewApplyCSSClass(class string, ids ...string) ApplyCSSClass {
	return ApplyCSSClass{Class: class, ElementIDs: ids, Priority: prio(PriorityPresentation)}
}

// NewRemoveCSSClass returns a RemoveCSSClass at the default priority.
func NewRemoveCSSClass(class string, ids ...string) RemoveCSSClass {
	return RemoveCSSClass{Class: class, ElementIDs: ids, Priority: prio(PriorityPresentation)}
}

// NewHighlightCapable returns a HighlightCapable at the default priority.
func NewHighlightCapable(feature, class string) HighlightCapable {
	return HighlightCapable{Feature: feature, Class: class, Priority: prio(PriorityPresentation)}
}

// NewSetCursor returns a SetCursor at the default priority.
func NewSetCursor(elementID, cursor string) SetCursor {
	return SetCursor{ElementID: elementID, Cursor: cursor, Priority: prio(PriorityPresentation)}
}

// WithPriority returns p as a pointer, for overriding a feedback action's priority.
func WithPriority(p int) *int {
	return prio(p)
}

func prio(p int) *int { return &p }

// RegisterKinds teaches the codec the built-in feedback kinds, so they travel
// over the wire and load from feedback files as typed actions.
func RegisterKinds(c *domain.Codec) {
	domain.Register[ShowHandles](c)
	domain.Register[HideHandles](c)
	domain.Register[SetCapability](c)
	domain.Register[ApplyCSSClass](c)
	domain.Register[RemoveCSSClass](c)
	domain.Register[HighlightCapable](c)
	domain.Register[SetCursor](c)
}

// Kinds lists the built-in feedback kinds.
func Kinds() []string {
	return []string{
		KindShowHandles,
		KindHideHandles,
		KindSetCapability,
		KindApplyCSSClass,
		KindRemoveCSSClass,
		KindHighlightCapable,
		KindSetCursor,
	}
}
