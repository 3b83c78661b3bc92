// Package manifest declares registry contents in YAML and applies them
// through the registry's creation protocol. References between definitions
// are written by local name and resolved to ids while applying.
package manifest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/registry"
)

type Manifest struct {
	Projects []Project `yaml:"projects"`
}

type Project struct {
	Name            string            `yaml:"name"`
	Tags            map[string]string `yaml:"tags"`
	Sources         []Source          `yaml:"sources"`
	Anchors         []Anchor          `yaml:"anchors"`
	DerivedFeatures []DerivedFeature  `yaml:"derivedFeatures"`
}

type Source struct {
	Name                 string            `yaml:"name"`
	Type                 string            `yaml:"type"`
	Path                 string            `yaml:"path"`
	Preprocessing        string            `yaml:"preprocessing"`
	EventTimestampColumn string            `yaml:"eventTimestampColumn"`
	TimestampFormat      string            `yaml:"timestampFormat"`
	Options              map[string]any    `yaml:"options"`
	Tags                 map[string]string `yaml:"tags"`
}

// Anchor names its source by local name within the project
type Anchor struct {
	Name     string            `yaml:"name"`
	Source   string            `yaml:"source"`
	Features []Feature         `yaml:"features"`
	Tags     map[string]string `yaml:"tags"`
}

type Feature struct {
	Name           string                `yaml:"name"`
	Type           models.FeatureType    `yaml:"type"`
	Transformation models.Transformation `yaml:"transformation"`
	Key            []models.TypedKey     `yaml:"key"`
	Tags           map[string]string     `yaml:"tags"`
}

// DerivedFeature inputs are qualified names or ids. Anchor features and derived
// features may be mixed; each is routed by its stored type.
type DerivedFeature struct {
	Feature `yaml:",inline"`
	Inputs  []string `yaml:"inputs"`
}

// Load parses a manifest file
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// Result maps every qualified name the manifest declared to its id
type Result map[string]uuid.UUID

// Applier creates manifest contents in order: project, sources, anchors with
// their features, then derived features in declaration order.
type Applier struct {
	registry registry.Registry
	logger   ectologger.Logger
}

func NewApplier(reg registry.Registry, logger ectologger.Logger) *Applier {
	return &Applier{registry: reg, logger: logger}
}

// Apply stops at the first failing definition. Everything created before it
// stays, and applying the same manifest again is idempotent.
func (a *Applier) Apply(ctx context.Context, m *Manifest) (Result, error) {
	result := Result{}
	for _, p := range m.Projects {
		if err := a.applyProject(ctx, p, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (a *Applier) applyProject(ctx context.Context, p Project, result Result) error {
	log := a.logger.WithContext(ctx).WithField("project", p.Name)

	projectID, err := a.registry.CreateProject(ctx, models.ProjectDef{Name: p.Name, Tags: p.Tags})
	if err != nil {
		return fmt.Errorf("project %s: %w", p.Name, err)
	}
	result[p.Name] = projectID

	sources := make(map[string]uuid.UUID, len(p.Sources))
	for _, s := range p.Sources {
		id, err := a.registry.CreateProjectDatasource(ctx, projectID, models.SourceDef{
			Name:                 s.Name,
			Type:                 s.Type,
			Path:                 s.Path,
			Preprocessing:        s.Preprocessing,
			EventTimestampColumn: s.EventTimestampColumn,
			TimestampFormat:      s.TimestampFormat,
			Options:              s.Options,
			Tags:                 s.Tags,
		})
		if err != nil {
			return fmt.Errorf("source %s: %w", s.Name, err)
		}
		sources[s.Name] = id
		result[models.QualifiedName(p.Name, s.Name)] = id
	}

	for _, an := range p.Anchors {
		sourceID, ok := sources[an.Source]
		if !ok {
			return registry.Validation("anchor %s: source %s is not declared in project %s", an.Name, an.Source, p.Name)
		}

		anchorID, err := a.registry.CreateProjectAnchor(ctx, projectID, models.AnchorDef{
			Name:     an.Name,
			SourceID: sourceID,
			Tags:     an.Tags,
		})
		if err != nil {
			return fmt.Errorf("anchor %s: %w", an.Name, err)
		}
		anchorName := models.QualifiedName(p.Name, an.Name)
		result[anchorName] = anchorID

		for _, f := range an.Features {
			id, err := a.registry.CreateProjectAnchorFeature(ctx, projectID, anchorID, models.AnchorFeatureDef{
				Name:           f.Name,
				FeatureType:    f.Type,
				Transformation: f.Transformation,
				Key:            f.Key,
				Tags:           f.Tags,
			})
			if err != nil {
				return fmt.Errorf("feature %s: %w", f.Name, err)
			}
			result[models.QualifiedName(anchorName, f.Name)] = id
		}
	}

	for _, d := range p.DerivedFeatures {
		anchorInputs, derivedInputs, err := a.resolveInputs(ctx, d.Inputs, result)
		if err != nil {
			return fmt.Errorf("derived feature %s: %w", d.Name, err)
		}

		id, err := a.registry.CreateProjectDerivedFeature(ctx, projectID, models.DerivedFeatureDef{
			Name:                 d.Name,
			FeatureType:          d.Type,
			Transformation:       d.Transformation,
			Key:                  d.Key,
			InputAnchorFeatures:  anchorInputs,
			InputDerivedFeatures: derivedInputs,
			Tags:                 d.Tags,
		})
		if err != nil {
			return fmt.Errorf("derived feature %s: %w", d.Name, err)
		}
		result[models.QualifiedName(p.Name, d.Name)] = id
	}

	log.WithField("entities", len(result)).Info("Applied project manifest")
	return nil
}

// resolveInputs splits inputs by stored type. Names declared earlier in the
// manifest resolve without a lookup.
func (a *Applier) resolveInputs(ctx context.Context, inputs []string, known Result) ([]uuid.UUID, []uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(inputs))
	for _, input := range inputs {
		if id, ok := known[input]; ok {
			ids = append(ids, id)
			continue
		}
		id, err := a.registry.GetEntityID(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	entities, err := a.registry.GetEntities(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	anchors := ectolinq.Filter(entities, func(e models.Entity) bool {
		return e.EntityType == models.EntityTypeAnchorFeature
	})
	derived := ectolinq.Filter(entities, func(e models.Entity) bool {
		return e.EntityType == models.EntityTypeDerivedFeature
	})
	if len(anchors)+len(derived) != len(entities) {
		return nil, nil, registry.Validation("inputs must be features: %v", inputs)
	}

	toID := func(e models.Entity) uuid.UUID { return e.ID }
	return ectolinq.Map(anchors, toID), ectolinq.Map(derived, toID), nil
}
