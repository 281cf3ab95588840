package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/feedback"
)

func TestGenerateMermaid(t *testing.T) {
	handle := domain.NewElement(feedback.HandleID("n1", "se"), feedback.HandleType)
	n1 := domain.NewElement("n1", "node", handle)
	n1.CSSClasses = []string{"selected", "custom"}
	n1.Overlay = map[string]string{"cursor": "move"}

	tests := []struct {
		name     string
		root     *domain.Element
		contains []string
		excludes []string
	}{
		{
			name:     "Nil root",
			root:     nil,
			contains: []string{"graph TD\n"},
			excludes: []string{"-->"},
		},
		{
			name: "Root and child shapes",
			root: domain.NewElement("g", "graph", domain.NewElement("n2", "node")),
			contains: []string{
				"g((\"g\"))",
				"n2[\"n2\"]",
				"g --> n2",
			},
			excludes: []string{"Overlay Styles"},
		},
		{
			name: "Handles and overlay",
			root: domain.NewElement("g", "graph", n1),
			contains: []string{
				"n1[\"n1 <br/> move\"]",
				"n1__handle_se(\"se\")",
				"n1 -.- n1__handle_se",
				"classDef selected fill:#ffeb3b",
				"class n1 selected;",
				"classDef custom fill:#f3e5f5",
			},
		},
		{
			name: "ID Sanitization",
			root: domain.NewElement("root", "graph", domain.NewElement("path/to/file.md", "node"), domain.NewElement("hyphen-ated", "node")),
			contains: []string{
				"path_to_file_md[\"path/to/file.md\"]",
				"hyphen_ated[\"hyphen-ated\"]",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.root)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() missing %q\nGot:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("GenerateMermaid() should not contain %q\nGot:\n%s", unwanted, got)
				}
			}
		})
	}
}
