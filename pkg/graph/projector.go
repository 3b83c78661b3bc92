package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Writer runs Cypher statements in one transaction. Client implements it.
type Writer interface {
	Write(ctx context.Context, statements ...Statement) error
}

// Projector keeps a graph database copy of the registry. Nodes carry the
// entity label (Project, Source, ...) plus a shared Entity label; edges keep
// their registry relationship type.
type Projector struct {
	writer Writer
	logger ectologger.Logger
}

func NewProjector(writer Writer, logger ectologger.Logger) *Projector {
	return &Projector{
		writer: writer,
		logger: logger,
	}
}

func (p *Projector) Name() string {
	return "graph"
}

// OnEntityCreated merges the node and the edges written with it
func (p *Projector) OnEntityCreated(ctx context.Context, entity models.Entity, edges []models.EdgeKey) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.OnEntityCreated")
	defer span.End()

	statements := []Statement{entityStatement(entity)}
	for _, edge := range edges {
		stmt, err := edgeStatement(edge)
		if err != nil {
			return err
		}
		statements = append(statements, stmt)
	}

	if err := p.writer.Write(ctx, statements...); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("entity_id", entity.ID).Error("Failed to project entity into graph")
		return fmt.Errorf("failed to project entity into graph: %w", err)
	}
	return nil
}

// OnEntityDeleted removes the node. DETACH DELETE drops its relationships, so
// the purged edges need no statements of their own.
func (p *Projector) OnEntityDeleted(ctx context.Context, entity models.Entity, _ []models.EdgeKey) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.OnEntityDeleted")
	defer span.End()

	stmt := Statement{
		Cypher: `MATCH (e:Entity {id: $id}) DETACH DELETE e`,
		Params: map[string]any{"id": entity.ID.String()},
	}

	if err := p.writer.Write(ctx, stmt); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("entity_id", entity.ID).Error("Failed to remove entity from graph")
		return fmt.Errorf("failed to remove entity from graph: %w", err)
	}
	return nil
}

func entityStatement(e models.Entity) Statement {
	return Statement{
		Cypher: fmt.Sprintf(`
		MERGE (e:Entity {id: $id})
		SET e:%s, e.qualified_name = $qualified_name, e.entity_type = $entity_type, e.name = $name
	`, e.EntityType.Label()),
		Params: map[string]any{
			"id":             e.ID.String(),
			"qualified_name": e.QualifiedName,
			"entity_type":    string(e.EntityType),
			"name":           attributeName(e),
		},
	}
}

func attributeName(e models.Entity) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes.GetName()
}

// edgeStatement interpolates the relationship type, so only the closed set of
// registry types is accepted.
func edgeStatement(edge models.EdgeKey) (Statement, error) {
	if !edge.RelationshipType.Valid() {
		return Statement{}, fmt.Errorf("invalid relationship type %q", edge.RelationshipType)
	}
	return Statement{
		Cypher: fmt.Sprintf(`
		MERGE (a:Entity {id: $from})
		MERGE (b:Entity {id: $to})
		MERGE (a)-[:%s]->(b)
	`, edge.RelationshipType),
		Params: map[string]any{
			"from": edge.FromID.String(),
			"to":   edge.ToID.String(),
		},
	}, nil
}
