package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/feedback"
)

// classStyles are the Mermaid styles of well-known overlay classes.
// Other classes get the default style.
var classStyles = map[string]string{
	"selected":  "fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000",
	"highlight": "fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000",
}

const defaultClassStyle = "fill:#f3e5f5,stroke:#6a1b9a,color:#000"

// GenerateMermaid produces a Mermaid flowchart of a model tree, parent to child.
// It applies semantic styling:
// - Root: ((Circle))
// - Handle: small (Rounded) node on a dotted edge
// - Default: [Rectangle]
// CSS classes on elements become classDef/class statements, and a cursor
// overlay is shown in the label.
func GenerateMermaid(root *domain.Element) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if root == nil {
		return sb.String()
	}

	classed := make(map[string][]string)
	var order []string

	var walk func(el *domain.Element, parent string)
	walk = func(el *domain.Element, parent string) {
		safeID := sanitizeMermaidID(el.ID)

		opener, closer := "[", "]"
		switch {
		case parent == "":
			opener, closer = "((", "))"
		case el.Type == feedback.HandleType:
			opener, closer = "(", ")"
		}

		label := el.ID
		if el.Type == feedback.HandleType {
			if _, pos, ok := feedback.ParseHandleID(el.ID); ok {
				label = pos
			}
		}
		if cursor := el.Overlay["cursor"]; cursor != "" {
			label = fmt.Sprintf("%s <br/> %s", label, cursor)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, strings.ReplaceAll(label, "\"", "'"), closer))

		if parent != "" {
			arrow := "-->"
			if el.Type == feedback.HandleType {
				arrow = "-.-"
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", parent, arrow, safeID))
		}

		for _, class := range el.CSSClasses {
			if _, seen := classed[class]; !seen {
				order = append(order, class)
			}
			classed[class] = append(classed[class], safeID)
		}

		for _, child := range el.Children {
			walk(child, safeID)
		}
	}
	walk(root, "")

	if len(order) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		slices.Sort(order)
		for _, class := range order {
			style, ok := classStyles[class]
			if !ok {
				style = defaultClassStyle
			}
			safeClass := sanitizeMermaidID(class)
			sb.WriteString(fmt.Sprintf("    classDef %s %s;\n", safeClass, style))
			sb.WriteString(fmt.Sprintf("    class %s %s;\n", strings.Join(classed[class], ","), safeClass))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
