package registry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// TestCreate_Properties drives random creation sequences against one project
// and checks qualified-name uniqueness, idempotence and conflict atomicity.
func TestCreate_Properties(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		s, db := newTestService(t)
		ctx := context.Background()

		project, err := s.CreateProject(ctx, models.ProjectDef{Name: "p"})
		if err != nil {
			r.Fatalf("CreateProject: %v", err)
		}

		type key struct {
			kind string
			name string
		}
		firstIDs := map[key]uuid.UUID{}
		firstPaths := map[string]string{}
		kindOf := map[string]string{}
		var sources []uuid.UUID

		steps := rapid.IntRange(1, 25).Draw(r, "steps")
		for i := 0; i < steps; i++ {
			name := rapid.SampledFrom([]string{"a", "b", "c", "d"}).Draw(r, "name")
			kind := "source"
			if len(sources) > 0 && rapid.Bool().Draw(r, "anchor") {
				kind = "anchor"
			}

			before := countRows(t, db, "entities")

			var id uuid.UUID
			var err error
			var path string
			switch kind {
			case "source":
				path = rapid.SampledFrom([]string{"/x", "/y"}).Draw(r, "path")
				id, err = s.CreateProjectDatasource(ctx, project, models.SourceDef{Name: name, Type: "hdfs", Path: path})
			case "anchor":
				id, err = s.CreateProjectAnchor(ctx, project, models.AnchorDef{Name: name, SourceID: sources[0]})
			}

			existing, taken := kindOf[name]
			switch {
			case !taken:
				if err != nil {
					r.Fatalf("create %s %s: %v", kind, name, err)
				}
				kindOf[name] = kind
				firstIDs[key{kind, name}] = id
				firstPaths[name] = path
				if kind == "source" {
					sources = append(sources, id)
				}
			case existing != kind || (kind == "source" && firstPaths[name] != path):
				if !IsConflict(err) {
					r.Fatalf("expected conflict for %s %s, got id=%s err=%v", kind, name, id, err)
				}
				if after := countRows(t, db, "entities"); after != before {
					r.Fatalf("conflict wrote rows: %d -> %d", before, after)
				}
			default:
				if err != nil {
					r.Fatalf("re-create %s %s: %v", kind, name, err)
				}
				if id != firstIDs[key{kind, name}] {
					r.Fatalf("re-create %s %s returned %s, want %s", kind, name, id, firstIDs[key{kind, name}])
				}
			}
		}

		var total, distinct int
		if err := db.GetContext(ctx, &total, "SELECT COUNT(*) FROM entities"); err != nil {
			r.Fatalf("count: %v", err)
		}
		if err := db.GetContext(ctx, &distinct, "SELECT COUNT(DISTINCT qualified_name) FROM entities"); err != nil {
			r.Fatalf("count distinct: %v", err)
		}
		if total != distinct || total != len(kindOf)+1 {
			r.Fatalf("entities=%d distinct names=%d created=%d", total, distinct, len(kindOf)+1)
		}
	})
}
