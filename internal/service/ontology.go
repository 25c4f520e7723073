package service

import (
	"context"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/memorybridge/internal/domain"
	"github.com/Strob0t/memorybridge/internal/port/memorygateway"
)

// Property types accepted by the gateway for custom entity attributes.
var validPropertyTypes = []string{"Text", "Int", "Float", "Boolean"}

// Ontology is the file format of a custom entity-type definition.
type Ontology struct {
	EntityTypes []memorygateway.EntityType `yaml:"entity_types"`
}

// LoadOntology reads and validates an ontology YAML file.
func LoadOntology(path string) (*Ontology, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read ontology: %w", err)
	}
	return ParseOntology(data)
}

// ParseOntology decodes and validates ontology YAML.
func ParseOntology(data []byte) (*Ontology, error) {
	var o Ontology
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse ontology: %w", err)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}

// Validate checks names are present and unique and property types are known.
func (o *Ontology) Validate() error {
	if len(o.EntityTypes) == 0 {
		return fmt.Errorf("%w: ontology defines no entity types", domain.ErrValidation)
	}
	seen := make(map[string]bool, len(o.EntityTypes))
	for i := range o.EntityTypes {
		et := &o.EntityTypes[i]
		if et.Name == "" {
			return fmt.Errorf("%w: entity type %d has no name", domain.ErrValidation, i)
		}
		if seen[et.Name] {
			return fmt.Errorf("%w: duplicate entity type %q", domain.ErrValidation, et.Name)
		}
		seen[et.Name] = true

		for _, p := range et.Properties {
			if p.Name == "" {
				return fmt.Errorf("%w: entity type %q has a property without name", domain.ErrValidation, et.Name)
			}
			if !slices.Contains(validPropertyTypes, p.Type) {
				return fmt.Errorf("%w: property %s.%s has type %q, want one of %v",
					domain.ErrValidation, et.Name, p.Name, p.Type, validPropertyTypes)
			}
		}
	}
	return nil
}

// SetOntology replaces the custom entity types of a workspace's graph.
func (s *MemoryService) SetOntology(ctx context.Context, workspaceID string, o *Ontology) error {
	if err := o.Validate(); err != nil {
		return err
	}
	gw, err := s.gateways.ForWorkspace(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("resolve gateway for workspace %s: %w", workspaceID, err)
	}
	if err := gw.SetEntityTypes(ctx, o.EntityTypes); err != nil {
		return fmt.Errorf("set entity types: %w", err)
	}
	return nil
}
