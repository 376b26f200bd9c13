package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"sigs.k8s.io/yaml"

	"github.com/l7mp/dcollections/pkg/document"
	"github.com/l7mp/dcollections/pkg/visualize"
)

// Scenario is a pipeline definition together with the edits replayed through it.
type Scenario struct {
	// Name labels the output and the metrics of the scenario.
	Name string `json:"name"`
	// Key is the JSONPath of the field items are keyed by, e.g. "$.metadata.name".
	Key string `json:"key"`
	// Filter is the initial filter expression. Empty means no filtering.
	Filter string `json:"filter,omitempty"`
	// Sort is the JSONPath of the field the output is sorted by. Empty means unsorted.
	Sort string `json:"sort,omitempty"`
	// Page windows the sorted output to pages of the given size.
	Page *PageSpec `json:"page,omitempty"`
	// Top windows the sorted output to its first Top items.
	Top int `json:"top,omitempty"`
	// Steps are the edit batches, applied in order.
	Steps []Step `json:"steps"`
}

// PageSpec selects the initial page.
type PageSpec struct {
	Size   int `json:"size"`
	Number int `json:"number,omitempty"`
}

// Step is one edit batch or pipeline reconfiguration. All fields set in a step take effect: the
// edits first, as one batch, then the reconfigurations.
type Step struct {
	Add     []document.Document `json:"add,omitempty"`
	Remove  []string            `json:"remove,omitempty"`
	Refresh []string            `json:"refresh,omitempty"`
	Clear   bool                `json:"clear,omitempty"`
	Filter  *string             `json:"filter,omitempty"`
	Page    *int                `json:"page,omitempty"`
	Resort  bool                `json:"resort,omitempty"`
}

// LoadScenario reads a scenario from a YAML or JSON file.
func LoadScenario(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read scenario %q", path)
	}
	s := &Scenario{}
	if err := yaml.UnmarshalStrict(b, s); err != nil {
		return nil, errors.Wrapf(err, "failed to parse scenario %q", path)
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, s.Validate()
}

// Validate checks the scenario for usage errors.
func (s *Scenario) Validate() error {
	switch {
	case s.Key == "":
		return errors.Newf("scenario %q: key must be set", s.Name)
	case s.Page != nil && s.Top > 0:
		return errors.Newf("scenario %q: page and top are mutually exclusive", s.Name)
	case (s.Page != nil || s.Top > 0) && s.Sort == "":
		return errors.Newf("scenario %q: windowing requires sort", s.Name)
	case s.Page != nil && s.Page.Size <= 0:
		return errors.Newf("scenario %q: page size must be positive", s.Name)
	case s.Top < 0:
		return errors.Newf("scenario %q: top must be positive", s.Name)
	}
	if _, err := document.ParsePath(s.Key); err != nil {
		return errors.Wrapf(err, "scenario %q: key", s.Name)
	}
	if s.Sort != "" {
		if _, err := document.ParsePath(s.Sort); err != nil {
			return errors.Wrapf(err, "scenario %q: sort", s.Name)
		}
	}
	for i, step := range s.Steps {
		if step.Page != nil && s.Page == nil {
			return errors.Newf("scenario %q: step %d requests a page of an unpaged pipeline", s.Name, i)
		}
	}
	return nil
}

// Graph returns the pipeline the runner builds for the scenario. Stage names match the metrics
// labels of the runner.
func (s *Scenario) Graph() *visualize.Graph {
	filter := s.Filter
	if filter == "" {
		filter = "true"
	}
	g := &visualize.Graph{Name: s.Name, Stages: []visualize.Stage{
		{Name: s.Name + "/source", Operator: "SourceCache", Params: []string{"key=" + s.Key}},
		{Name: s.Name + "/filter", Operator: "FilterDynamic", Params: []string{filter}, Control: "filters"},
	}}
	if s.Sort != "" {
		g.Stages = append(g.Stages, visualize.Stage{Name: s.Name + "/sort", Operator: "Sort",
			Params: []string{s.Sort}, Control: "resort"})
	}
	switch {
	case s.Page != nil:
		g.Stages = append(g.Stages, visualize.Stage{Name: s.Name + "/page", Operator: "Page",
			Params: []string{fmt.Sprintf("size=%d", s.Page.Size)}, Control: "pages"})
	case s.Top > 0:
		g.Stages = append(g.Stages, visualize.Stage{Name: s.Name + "/top", Operator: "Top",
			Params: []string{fmt.Sprintf("%d", s.Top)}})
	}
	g.Stages = append(g.Stages, visualize.Stage{Name: s.Name + "/print", Operator: "Print"})
	return g
}
