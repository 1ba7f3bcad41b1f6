package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/query"
)

func TestSchemaStatements(t *testing.T) {
	reg := newRegistry(t)

	tests := []struct {
		name      string
		dialect   query.Dialect
		resources []string
		drops     []string
		creates   []string
	}{
		{
			name:      "sqlite many-to-many",
			dialect:   query.SQLite,
			resources: []string{"Tag", "Dummy"},
			drops: []string{
				"DROP TABLE IF EXISTS dummy_tags",
				"DROP TABLE IF EXISTS tag",
				"DROP TABLE IF EXISTS dummy",
			},
			creates: []string{
				"CREATE TABLE tag (id INTEGER PRIMARY KEY AUTOINCREMENT, label VARCHAR(255))",
				"CREATE TABLE dummy (id INTEGER PRIMARY KEY AUTOINCREMENT, name VARCHAR(255), price NUMERIC, born_at DATE, active BOOLEAN, related_id INTEGER, address_city VARCHAR(255))",
				"CREATE TABLE dummy_tags (source_id INTEGER NOT NULL, target_id INTEGER NOT NULL, PRIMARY KEY (source_id, target_id))",
			},
		},
		{
			name:      "postgres hierarchy is one table",
			dialect:   query.Postgres,
			resources: []string{"Cat", "Animal"},
			drops:     []string{"DROP TABLE IF EXISTS animal CASCADE"},
			creates: []string{
				"CREATE TABLE animal (id BIGSERIAL PRIMARY KEY, name VARCHAR(255), lives BIGINT, discr VARCHAR(255) NOT NULL)",
			},
		},
		{
			name:      "composite and uuid identifiers",
			dialect:   query.SQLite,
			resources: []string{"Pair", "Token"},
			drops: []string{
				"DROP TABLE IF EXISTS pair",
				"DROP TABLE IF EXISTS token",
			},
			creates: []string{
				"CREATE TABLE pair (code INTEGER NOT NULL, slot VARCHAR(255) NOT NULL, label VARCHAR(255), PRIMARY KEY (code, slot))",
				"CREATE TABLE token (id VARCHAR(36) PRIMARY KEY, name VARCHAR(255))",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resources []*metadata.Resource
			for _, name := range tt.resources {
				resources = append(resources, reg.MustGet(name))
			}
			drops, creates, err := SchemaStatements(tt.dialect, resources)
			require.NoError(t, err)
			assert.Equal(t, tt.drops, drops)
			assert.Equal(t, tt.creates, creates)
		})
	}
}

func TestSchemaStatements_NoColumns(t *testing.T) {
	type empty struct{}
	res := metadata.MustParse("Empty", empty{}, metadata.WithIdentifier(metadata.IdentifierNatural))
	_, _, err := SchemaStatements(query.SQLite, []*metadata.Resource{res})
	assert.Error(t, err)
}
