// Package visualize renders change-set pipelines as diagrams.
package visualize

import (
	"fmt"
	"strings"

	"github.com/emicklei/dot"
)

// Graph is a linear pipeline: a source followed by its stages, ending in a sink.
type Graph struct {
	Name   string
	Stages []Stage
}

// Stage is one node of the pipeline.
type Stage struct {
	// Name is the stage label, also used as the metrics label of the stage.
	Name string
	// Operator names the operator the stage runs, e.g. "Sort".
	Operator string
	// Params is a short rendering of the stage configuration.
	Params []string
	// Control names the control stream driving the stage, if any (e.g. "filters").
	Control string
}

// Label renders a stage as "Operator(params)".
func (s Stage) Label() string {
	if len(s.Params) == 0 {
		return s.Operator
	}
	return fmt.Sprintf("%s(%s)", s.Operator, strings.Join(s.Params, ", "))
}

// Generator renders a graph.
type Generator interface {
	Generate(g *Graph) string
}

// NewGenerator returns the generator for format, "dot" or "mermaid".
func NewGenerator(format string) (Generator, error) {
	switch strings.ToLower(format) {
	case "dot", "graphviz":
		return &DotGenerator{}, nil
	case "mermaid":
		return &MermaidGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown diagram format %q", format)
	}
}

// BuildDotGraph creates a dot.Graph from the pipeline graph. The same graph can then be rendered
// in different formats (DOT, Mermaid).
func BuildDotGraph(g *Graph) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "LR")
	graph.Attr("label", g.Name)
	graph.Attr("labelloc", "t")
	graph.Attr("fontsize", "16")

	var prev *dot.Node
	controls := map[string]dot.Node{}
	for i, s := range g.Stages {
		node := graph.Node(fmt.Sprintf("stage%d", i)).
			Attr("label", s.Label()).
			Attr("fontname", "helvetica")
		switch {
		case i == 0:
			node.Attr("shape", "ellipse").Attr("style", "filled").Attr("fillcolor", "lightgreen")
		case i == len(g.Stages)-1:
			node.Attr("shape", "ellipse").Attr("style", "filled").Attr("fillcolor", "lightyellow")
		default:
			node.Attr("shape", "box").Attr("style", "filled,rounded").
				Attr("fillcolor", "lightblue").Attr("color", "darkblue")
		}

		if prev != nil {
			graph.Edge(*prev, node).Attr("label", "changes").Attr("fontsize", "10")
		}
		if s.Control != "" {
			ctrl, ok := controls[s.Control]
			if !ok {
				ctrl = graph.Node("control-"+s.Control).
					Attr("label", s.Control).
					Attr("shape", "note").
					Attr("fontname", "helvetica")
				controls[s.Control] = ctrl
			}
			graph.Edge(ctrl, node).Attr("style", "dashed").Attr("color", "blue")
		}
		prev = &node
	}

	return graph
}
