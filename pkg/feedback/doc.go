// Package feedback holds transient overlay state that must survive model replacement.
//
// Features register feedback actions per emitter in a Registry. Every time the
// authoritative model is replaced, a Pipeline resolves the registered actions to
// effects through a closed table (EffectFor), orders them by priority and applies
// them to a copy of the new snapshot before it is published.
//
// Built-in kinds and their default priorities:
//
//	setCapability                         20
//	showHandles, hideHandles              10
//	applyCssClass, removeCssClass,
//	highlightCapable, setCursor            0
package feedback
