// Package cli holds the file-based helpers behind the lattice commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/feedback"
)

// Emitter is one named feedback owner of a feedback file.
type Emitter struct {
	Name    string           `yaml:"name" json:"name"`
	Actions []map[string]any `yaml:"actions" json:"actions"`
}

// FeedbackFile is the on-disk form of a registered feedback set.
//
//	emitters:
//	  - name: resize-tool
//	    actions:
//	      - kind: showHandles
//	        elementIds: [n1]
type FeedbackFile struct {
	Emitters []Emitter `yaml:"emitters" json:"emitters"`
}

// Report summarizes one replay run.
type Report struct {
	Emitters int
	Actions  int
	Event    domain.ReplayEvent
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func unmarshal(path string, data []byte, target any) error {
	if isJSON(path) {
		return json.Unmarshal(data, target)
	}
	return yaml.Unmarshal(data, target)
}

// LoadModel reads a model tree from a JSON or YAML file.
func LoadModel(path string) (*domain.Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}
	var root domain.Element
	if err := unmarshal(path, data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	if root.ID == "" {
		return nil, fmt.Errorf("%w: model %s has no root id", domain.ErrInvalidPayload, path)
	}
	return &root, nil
}

// LoadFeedback reads a feedback file and decodes its actions with codec.
// Unknown kinds decode into generic actions and are skipped at replay.
func LoadFeedback(path string, codec *domain.Codec) (FeedbackFile, [][]domain.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FeedbackFile{}, nil, fmt.Errorf("failed to read feedback %s: %w", path, err)
	}
	var file FeedbackFile
	if err := unmarshal(path, data, &file); err != nil {
		return FeedbackFile{}, nil, fmt.Errorf("failed to parse feedback %s: %w", path, err)
	}

	decoded := make([][]domain.Action, len(file.Emitters))
	for i, em := range file.Emitters {
		if em.Name == "" {
			return FeedbackFile{}, nil, fmt.Errorf("%w: emitter #%d has no name", domain.ErrInvalidEmitter, i+1)
		}
		for j, m := range em.Actions {
			a, err := codec.FromMap(m)
			if err != nil {
				return FeedbackFile{}, nil, fmt.Errorf("emitter %s action #%d: %w", em.Name, j+1, err)
			}
			decoded[i] = append(decoded[i], a)
		}
	}
	return file, decoded, nil
}

// Replay registers each emitter's actions in file order and decorates root with them.
func Replay(ctx context.Context, root *domain.Element, file FeedbackFile, actions [][]domain.Action, logger *slog.Logger) (*domain.Element, Report, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	reg := feedback.NewRegistry(nil, feedback.WithLogger(logger))
	var report Report
	for i, em := range file.Emitters {
		if err := reg.Register(em.Name, actions[i]...); err != nil {
			return nil, Report{}, fmt.Errorf("register %s: %w", em.Name, err)
		}
	}
	report.Actions = len(reg.All())
	report.Emitters = reg.Emitters()

	pipeline := feedback.NewPipeline(reg,
		feedback.WithPipelineLogger(logger),
		feedback.WithPipelineHooks(domain.LifecycleHooks{
			OnReplay: func(_ context.Context, e *domain.ReplayEvent) {
				report.Event = *e
			},
		}),
	)
	return pipeline.Replay(ctx, root), report, nil
}

// WriteModel writes root as indented JSON, or YAML when path ends in .yaml/.yml.
// An empty path writes JSON to w.
func WriteModel(w io.Writer, path string, root *domain.Element) error {
	var (
		data []byte
		err  error
	)
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		data, err = yaml.Marshal(root)
	} else {
		data, err = json.MarshalIndent(root, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if path == "" {
		_, err = w.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
