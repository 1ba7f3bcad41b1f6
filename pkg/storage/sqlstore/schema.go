package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/query"
)

// SchemaStatements returns the DROP and CREATE statements for the tables of
// the given resources. Resources sharing a table through inheritance yield
// one table holding the columns of the whole hierarchy.
//
// Columns other than identifiers are nullable: a single table hierarchy
// stores classes that do not share every property.
func SchemaStatements(d query.Dialect, resources []*metadata.Resource) (drops, creates []string, err error) {
	roots := make([]*metadata.Resource, 0, len(resources))
	seenRoots := make(map[*metadata.Resource]bool)
	for _, res := range resources {
		root := res.Root()
		if !seenRoots[root] {
			seenRoots[root] = true
			roots = append(roots, root)
		}
	}

	seenJoinTables := make(map[string]bool)
	var joinDrops, joinCreates []string
	for _, root := range roots {
		create, err := createTable(d, root)
		if err != nil {
			return nil, nil, err
		}
		drops = append(drops, dropTable(d, root.Table))
		creates = append(creates, create)

		for _, f := range root.StorageFields() {
			rel := f.Relation
			if rel == nil || rel.Kind != metadata.ManyToMany || rel.MappedBy != "" || seenJoinTables[rel.JoinTable] {
				continue
			}
			seenJoinTables[rel.JoinTable] = true
			joinDrops = append(joinDrops, dropTable(d, rel.JoinTable))
			joinCreates = append(joinCreates, createJoinTable(d, root, f))
		}
	}
	return append(joinDrops, drops...), append(creates, joinCreates...), nil
}

func dropTable(d query.Dialect, table string) string {
	if d == query.Postgres {
		return "DROP TABLE IF EXISTS " + table + " CASCADE"
	}
	return "DROP TABLE IF EXISTS " + table
}

func createTable(d query.Dialect, root *metadata.Resource) (string, error) {
	var columns []string
	var primary []string

	for _, f := range root.StorageFields() {
		switch {
		case f.Relation != nil:
			if f.Relation.IsOwningToOne() {
				columns = append(columns, f.Column+" "+d.IdentifierType(f.Relation.TargetResource().Root()))
			}
		case f.Type == metadata.TypeEmbedded:
			for _, sub := range f.Embedded {
				columns = append(columns, sub.Column+" "+d.ColumnType(sub))
			}
		case isIdentifierField(root, f):
			switch root.Identifier.Kind {
			case metadata.IdentifierAuto:
				columns = append(columns, f.Column+" "+d.AutoIncrementPK())
			case metadata.IdentifierUUID:
				columns = append(columns, f.Column+" VARCHAR(36) PRIMARY KEY")
			case metadata.IdentifierComposite:
				columns = append(columns, f.Column+" "+d.ColumnType(f)+" NOT NULL")
				primary = append(primary, f.Column)
			default:
				columns = append(columns, f.Column+" "+d.ColumnType(f)+" PRIMARY KEY")
			}
		default:
			columns = append(columns, f.Column+" "+d.ColumnType(f))
		}
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("resource %s has no stored columns", root.Name)
	}
	if column := root.DiscriminatorColumn(); column != "" {
		columns = append(columns, column+" VARCHAR(255) NOT NULL")
	}
	if len(primary) > 0 {
		columns = append(columns, "PRIMARY KEY ("+strings.Join(primary, ", ")+")")
	}
	return "CREATE TABLE " + root.Table + " (" + strings.Join(columns, ", ") + ")", nil
}

func createJoinTable(d query.Dialect, owner *metadata.Resource, f *metadata.Field) string {
	source, target := query.JoinTableColumns()
	return fmt.Sprintf("CREATE TABLE %s (%s %s NOT NULL, %s %s NOT NULL, PRIMARY KEY (%s, %s))",
		f.Relation.JoinTable,
		source, d.IdentifierType(owner.Root()),
		target, d.IdentifierType(f.Relation.TargetResource().Root()),
		source, target,
	)
}

func isIdentifierField(res *metadata.Resource, f *metadata.Field) bool {
	for _, name := range res.Identifier.Fields {
		if name == f.Name {
			return true
		}
	}
	return false
}

// RecreateSchema drops and creates the tables of the given resources
func (s *Store) RecreateSchema(ctx context.Context, resources []*metadata.Resource) (err error) {
	ctx, finish := s.observe(ctx, "recreate_schema", nil)
	defer func() { finish(err) }()

	drops, creates, err := SchemaStatements(s.dialect, resources)
	if err != nil {
		return err
	}

	tx, err := s.conn.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range append(drops, creates...) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %q failed: %w", stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	s.logger.WithField("tables", len(creates)).Debug("schema recreated")
	return nil
}
