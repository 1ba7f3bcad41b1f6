package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/observability"
	"github.com/platinummonkey/gantry/pkg/query"
	"github.com/platinummonkey/gantry/pkg/storage"
)

var storeTracer = otel.Tracer("gantry/storage/sqlstore")

// Store implements storage.Store on PostgreSQL or SQLite. Writes go to the
// primary, reads to a replica when one is configured.
type Store struct {
	conn    *ConnectionManager
	dialect query.Dialect
	reg     *metadata.Registry
	metrics *observability.Metrics
	logger  *observability.Logger
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithMetrics records storage operations in the given metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a store. The registry is used to clean up join tables
// referencing deleted items.
func New(conn *ConnectionManager, reg *metadata.Registry, opts ...Option) *Store {
	s := &Store{
		conn:    conn,
		dialect: conn.Dialect(),
		reg:     reg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return s
}

// Dialect implements storage.Store
func (s *Store) Dialect() query.Dialect {
	return s.dialect
}

// observe starts a span and returns a function recording the outcome
func (s *Store) observe(ctx context.Context, operation string, res *metadata.Resource) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", string(s.dialect)),
		attribute.String("operation", operation),
	}
	if res != nil {
		attrs = append(attrs, attribute.String("resource", res.Name))
	}
	ctx, span := storeTracer.Start(ctx, operation, trace.WithAttributes(attrs...))
	start := time.Now()

	return ctx, func(err error) {
		defer span.End()
		status := "success"
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, operation+" failed")
		}
		if s.metrics == nil {
			return
		}
		backend := string(s.dialect)
		s.metrics.StorageOperationsTotal.WithLabelValues(operation, backend, status).Inc()
		s.metrics.StorageOperationDuration.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
		if status == "error" {
			s.metrics.StorageErrorsTotal.WithLabelValues(operation, backend, errorType(err)).Inc()
		}
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, storage.ErrInvalidItem):
		return "invalid_item"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "context"
	default:
		return "database"
	}
}

// args numbers placeholders for hand written statements
type args struct {
	dialect query.Dialect
	values  []any
}

func (a *args) add(v any) string {
	a.values = append(a.values, v)
	return a.dialect.Placeholder(len(a.values))
}

// keyCondition matches the identifier of res. alias prefixes columns and
// may be empty.
func (s *Store) keyCondition(res *metadata.Resource, id any, alias string, arg func(any) string) (string, error) {
	fields := res.Root().IdentifierFields()
	if len(fields) == 0 {
		return "", fmt.Errorf("resource %s has no identifier: %w", res.Name, storage.ErrInvalidItem)
	}
	if res.Root().Identifier.Kind != metadata.IdentifierComposite {
		if id == nil {
			return "", fmt.Errorf("resource %s: missing identifier: %w", res.Name, storage.ErrInvalidItem)
		}
		return alias + fields[0].Column + " = " + arg(s.dialect.Bind(fields[0], id)), nil
	}

	parts, ok := id.(map[string]any)
	if !ok {
		return "", fmt.Errorf("resource %s: composite identifier expected, got %T: %w", res.Name, id, storage.ErrInvalidItem)
	}
	conditions := make([]string, 0, len(fields))
	for _, f := range fields {
		v, found := parts[f.Name]
		if !found {
			return "", fmt.Errorf("resource %s: missing identifier part %s: %w", res.Name, f.Name, storage.ErrInvalidItem)
		}
		conditions = append(conditions, alias+f.Column+" = "+arg(s.dialect.Bind(f, v)))
	}
	return strings.Join(conditions, " AND "), nil
}

// discriminatorCondition restricts child resources to their classes
func discriminatorCondition(res *metadata.Resource, alias string) string {
	column := res.DiscriminatorColumn()
	if res.Parent() == nil || column == "" {
		return ""
	}
	var values []string
	var walk func(r *metadata.Resource)
	walk = func(r *metadata.Resource) {
		values = append(values, query.QuoteLiteral(r.DiscriminatorValue()))
		for _, c := range r.Children() {
			walk(c)
		}
	}
	walk(res)
	return alias + column + " IN (" + strings.Join(values, ", ") + ")"
}

// writeColumns collects the stored columns present in item
func (s *Store) writeColumns(res *metadata.Resource, item metadata.Item, a *args, withIdentifier bool) (columns, placeholders []string) {
	for _, f := range res.Fields {
		switch {
		case f.Relation != nil:
			if !f.Relation.IsOwningToOne() {
				continue
			}
			if v, ok := item[f.Name]; ok {
				columns = append(columns, f.Column)
				placeholders = append(placeholders, a.add(v))
			}
		case f.Type == metadata.TypeEmbedded:
			v, ok := item[f.Name]
			if !ok {
				continue
			}
			nested := asItem(v)
			for _, sub := range f.Embedded {
				var subValue any
				if nested != nil {
					present := false
					if subValue, present = nested[sub.Name]; !present {
						continue
					}
				}
				columns = append(columns, sub.Column)
				placeholders = append(placeholders, a.add(s.dialect.Bind(sub, subValue)))
			}
		default:
			if isIdentifierField(res.Root(), f) {
				if !withIdentifier {
					continue
				}
				if res.Root().Identifier.Kind == metadata.IdentifierAuto && isZeroID(item[f.Name]) {
					continue
				}
			}
			v, ok := item[f.Name]
			if !ok {
				continue
			}
			columns = append(columns, f.Column)
			placeholders = append(placeholders, a.add(s.dialect.Bind(f, v)))
		}
	}
	return columns, placeholders
}

func asItem(v any) metadata.Item {
	switch x := v.(type) {
	case metadata.Item:
		return x
	case map[string]any:
		return metadata.Item(x)
	default:
		return nil
	}
}

func isZeroID(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case int64:
		return x == 0
	case int:
		return x == 0
	case float64:
		return x == 0
	case string:
		return x == ""
	default:
		return false
	}
}

// Create implements storage.Store
func (s *Store) Create(ctx context.Context, res *metadata.Resource, item metadata.Item) (out metadata.Item, err error) {
	ctx, finish := s.observe(ctx, "create", res)
	defer func() { finish(err) }()

	root := res.Root()
	item = item.Clone()
	if item == nil {
		item = metadata.Item{}
	}
	if root.Identifier.Kind == metadata.IdentifierUUID {
		name := root.Identifier.Fields[0]
		if isZeroID(item[name]) {
			item[name] = uuid.NewString()
		}
	}

	a := &args{dialect: s.dialect}
	columns, placeholders := s.writeColumns(res, item, a, true)
	if column := res.DiscriminatorColumn(); column != "" {
		columns = append(columns, column)
		placeholders = append(placeholders, a.add(res.DiscriminatorValue()))
	}

	stmt := "INSERT INTO " + root.Table + " DEFAULT VALUES"
	if len(columns) > 0 {
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", root.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	}

	tx, err := s.conn.Primary().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	id := root.IdentifierValue(item)
	if root.Identifier.Kind == metadata.IdentifierAuto && isZeroID(id) {
		generated, err := s.insertReturningID(ctx, tx, stmt, root, a.values)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", res.Name, err)
		}
		id = generated
	} else if _, err := tx.ExecContext(ctx, stmt, a.values...); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", res.Name, err)
	}

	if err := s.writeJoinRows(ctx, tx, res, id, item, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", res.Name, err)
	}

	s.logger.WithField("resource", res.Name).WithField("id", id).Debug("item created")
	return s.Get(ctx, res, id)
}

func (s *Store) insertReturningID(ctx context.Context, tx *sql.Tx, stmt string, root *metadata.Resource, values []any) (int64, error) {
	var id int64
	if s.dialect == query.Postgres {
		err := tx.QueryRowContext(ctx, stmt+" RETURNING "+root.IdentifierColumn(), values...).Scan(&id)
		return id, err
	}
	result, err := tx.ExecContext(ctx, stmt, values...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// writeJoinRows stores owning many-to-many relations present in item
func (s *Store) writeJoinRows(ctx context.Context, tx *sql.Tx, res *metadata.Resource, id any, item metadata.Item, replace bool) error {
	source, target := query.JoinTableColumns()
	for _, f := range res.Fields {
		rel := f.Relation
		if rel == nil || rel.Kind != metadata.ManyToMany || rel.MappedBy != "" {
			continue
		}
		v, ok := item[f.Name]
		if !ok {
			continue
		}
		if replace {
			a := &args{dialect: s.dialect}
			stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", rel.JoinTable, source, a.add(id))
			if _, err := tx.ExecContext(ctx, stmt, a.values...); err != nil {
				return fmt.Errorf("failed to clear %s: %w", rel.JoinTable, err)
			}
		}
		seen := make(map[string]bool)
		for _, targetID := range toSlice(v) {
			if targetID == nil || seen[idKey(targetID)] {
				continue
			}
			seen[idKey(targetID)] = true
			a := &args{dialect: s.dialect}
			stmt := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)", rel.JoinTable, source, target, a.add(id), a.add(targetID))
			if _, err := tx.ExecContext(ctx, stmt, a.values...); err != nil {
				return fmt.Errorf("failed to link %s: %w", f.Name, err)
			}
		}
	}
	return nil
}

func toSlice(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	case []int64:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	default:
		return []any{x}
	}
}

// Get implements storage.Store
func (s *Store) Get(ctx context.Context, res *metadata.Resource, id any) (item metadata.Item, err error) {
	ctx, finish := s.observe(ctx, "get", res)
	defer func() { finish(err) }()

	b := query.NewBuilder(s.dialect, res)
	cond, err := s.keyCondition(res, id, query.RootAlias+".", b.Arg)
	if err != nil {
		return nil, err
	}
	b.Where(cond)

	columns := selectColumns(res)
	items, err := s.fetch(ctx, res, columns, b.SelectSQL(columnNames(columns)...), b.Args())
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s %v: %w", res.Name, id, storage.ErrNotFound)
	}
	return items[0], nil
}

// Exists implements storage.Store
func (s *Store) Exists(ctx context.Context, res *metadata.Resource, id any) (found bool, err error) {
	ctx, finish := s.observe(ctx, "exists", res)
	defer func() { finish(err) }()

	b := query.NewBuilder(s.dialect, res)
	cond, err := s.keyCondition(res, id, query.RootAlias+".", b.Arg)
	if err != nil {
		return false, err
	}
	b.Where(cond)
	b.Paginate(1, 0)

	var idColumns []string
	for _, f := range res.Root().IdentifierFields() {
		idColumns = append(idColumns, f.Column)
	}
	rows, err := s.conn.Replica().QueryContext(ctx, b.SelectSQL(idColumns...), b.Args()...)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", res.Name, err)
	}
	defer rows.Close()
	found = rows.Next()
	return found, rows.Err()
}

// List implements storage.Store
func (s *Store) List(ctx context.Context, res *metadata.Resource, b *query.Builder) (items []metadata.Item, total int64, err error) {
	ctx, finish := s.observe(ctx, "list", res)
	defer func() { finish(err) }()

	db := s.conn.Replica()
	if err := db.QueryRowContext(ctx, b.CountSQL(), b.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", res.Name, err)
	}
	if total == 0 {
		return []metadata.Item{}, 0, nil
	}

	columns := selectColumns(res)
	items, err = s.fetch(ctx, res, columns, b.SelectSQL(columnNames(columns)...), b.Args())
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// fetch runs a select of columns, decodes the rows and loads collections
func (s *Store) fetch(ctx context.Context, res *metadata.Resource, columns []column, stmt string, values []any) ([]metadata.Item, error) {
	db := s.conn.Replica()
	rows, err := db.QueryContext(ctx, stmt, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", res.Name, err)
	}

	var items []metadata.Item
	var concretes []*metadata.Resource
	seen := make(map[string]bool)
	err = func() error {
		defer rows.Close()
		names, err := rows.Columns()
		if err != nil {
			return err
		}
		for rows.Next() {
			// ordering aggregates of grouped selects follow the item columns
			raw := make([]any, len(names))
			ptrs := make([]any, len(names))
			for i := range raw {
				ptrs[i] = &raw[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return fmt.Errorf("failed to scan %s: %w", res.Name, err)
			}
			item, concrete := decodeRow(res, columns, raw[:len(columns)])
			key := idKey(res.Root().IdentifierValue(item))
			if seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, item)
			concretes = append(concretes, concrete)
		}
		return rows.Err()
	}()
	if err != nil {
		return nil, err
	}

	if err := s.loadCollections(ctx, db, res, items, concretes); err != nil {
		return nil, err
	}
	if items == nil {
		items = []metadata.Item{}
	}
	return items, nil
}

// loadCollections fills to-many and inverse relations with related
// identifiers
func (s *Store) loadCollections(ctx context.Context, db *sql.DB, res *metadata.Resource, items []metadata.Item, concretes []*metadata.Resource) error {
	root := res.Root()
	if len(items) == 0 || root.Identifier.Kind == metadata.IdentifierComposite {
		return nil
	}
	idName := root.Identifier.Fields[0]
	ids := make([]any, len(items))
	for i, item := range items {
		ids[i] = item[idName]
	}

	for _, f := range root.StorageFields() {
		rel := f.Relation
		if rel == nil || rel.IsOwningToOne() {
			continue
		}
		a := &args{dialect: s.dialect}
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			placeholders[i] = a.add(id)
		}
		stmt, err := collectionQuery(f, strings.Join(placeholders, ", "))
		if err != nil {
			return fmt.Errorf("%s.%s: %w", res.Name, f.Name, err)
		}

		grouped, err := s.groupRelated(ctx, db, stmt, a.values, rel.TargetResource())
		if err != nil {
			return fmt.Errorf("failed to load %s.%s: %w", res.Name, f.Name, err)
		}
		for i, item := range items {
			if _, ok := concretes[i].Field(f.Name); !ok {
				continue
			}
			related := grouped[idKey(item[idName])]
			if rel.IsToMany() {
				if related == nil {
					related = []any{}
				}
				item[f.Name] = related
				continue
			}
			if len(related) > 0 {
				item[f.Name] = related[0]
			} else {
				item[f.Name] = nil
			}
		}
	}
	return nil
}

func (s *Store) groupRelated(ctx context.Context, db *sql.DB, stmt string, values []any, target *metadata.Resource) (map[string][]any, error) {
	rows, err := db.QueryContext(ctx, stmt, values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := make(map[string][]any)
	for rows.Next() {
		var owner, related any
		if err := rows.Scan(&owner, &related); err != nil {
			return nil, err
		}
		key := idKey(normalizeRaw(owner))
		grouped[key] = append(grouped[key], normalizeID(target, related))
	}
	return grouped, rows.Err()
}

func normalizeRaw(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// collectionQuery selects (owner id, related id) pairs for a to-many or
// inverse relation
func collectionQuery(f *metadata.Field, placeholders string) (string, error) {
	rel := f.Relation
	target := rel.TargetResource()
	if target == nil {
		return "", fmt.Errorf("relation to %s is not resolved", rel.Target)
	}
	source, targetColumn := query.JoinTableColumns()

	if rel.Kind == metadata.ManyToMany && rel.MappedBy == "" {
		return fmt.Sprintf("SELECT %[1]s, %[2]s FROM %[3]s WHERE %[1]s IN (%[4]s) ORDER BY %[1]s, %[2]s",
			source, targetColumn, rel.JoinTable, placeholders), nil
	}

	owner, ok := target.Field(rel.MappedBy)
	if !ok || owner.Relation == nil {
		return "", fmt.Errorf("mappedBy %s not found on %s", rel.MappedBy, target.Name)
	}
	if rel.Kind == metadata.ManyToMany {
		return fmt.Sprintf("SELECT %[2]s, %[1]s FROM %[3]s WHERE %[2]s IN (%[4]s) ORDER BY %[2]s, %[1]s",
			source, targetColumn, owner.Relation.JoinTable, placeholders), nil
	}

	idColumn := target.Root().IdentifierColumn()
	stmt := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s)", owner.Column, idColumn, target.Root().Table, owner.Column, placeholders)
	if cond := discriminatorCondition(target, ""); cond != "" {
		stmt += " AND " + cond
	}
	return stmt + " ORDER BY " + idColumn, nil
}

// Update implements storage.Store
func (s *Store) Update(ctx context.Context, res *metadata.Resource, id any, item metadata.Item) (out metadata.Item, err error) {
	ctx, finish := s.observe(ctx, "update", res)
	defer func() { finish(err) }()

	root := res.Root()
	a := &args{dialect: s.dialect}
	columns, placeholders := s.writeColumns(res, item, a, false)
	cond, err := s.keyCondition(res, id, "", a.add)
	if err != nil {
		return nil, err
	}
	if d := discriminatorCondition(res, ""); d != "" {
		cond += " AND " + d
	}

	tx, err := s.conn.Primary().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if len(columns) > 0 {
		assignments := make([]string, len(columns))
		for i := range columns {
			assignments[i] = columns[i] + " = " + placeholders[i]
		}
		stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s", root.Table, strings.Join(assignments, ", "), cond)
		result, err := tx.ExecContext(ctx, stmt, a.values...)
		if err != nil {
			return nil, fmt.Errorf("failed to update %s: %w", res.Name, err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return nil, fmt.Errorf("%s %v: %w", res.Name, id, storage.ErrNotFound)
		}
	} else {
		check := &args{dialect: s.dialect}
		where, _ := s.keyCondition(res, id, "", check.add)
		if d := discriminatorCondition(res, ""); d != "" {
			where += " AND " + d
		}
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM "+root.Table+" WHERE "+where, check.values...).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %v: %w", res.Name, id, storage.ErrNotFound)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", res.Name, err)
		}
	}

	if err := s.writeJoinRows(ctx, tx, res, id, item, true); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", res.Name, err)
	}
	return s.Get(ctx, res, id)
}

// Delete implements storage.Store
func (s *Store) Delete(ctx context.Context, res *metadata.Resource, id any) (err error) {
	ctx, finish := s.observe(ctx, "delete", res)
	defer func() { finish(err) }()

	root := res.Root()
	tx, err := s.conn.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if root.Identifier.Kind != metadata.IdentifierComposite {
		for _, stmt := range s.joinCleanup(root) {
			a := &args{dialect: s.dialect}
			if _, err := tx.ExecContext(ctx, stmt+a.add(id), a.values...); err != nil {
				return fmt.Errorf("failed to unlink %s: %w", res.Name, err)
			}
		}
	}

	a := &args{dialect: s.dialect}
	cond, err := s.keyCondition(res, id, "", a.add)
	if err != nil {
		return err
	}
	if d := discriminatorCondition(res, ""); d != "" {
		cond += " AND " + d
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM "+root.Table+" WHERE "+cond, a.values...)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", res.Name, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %v: %w", res.Name, id, storage.ErrNotFound)
	}
	return tx.Commit()
}

// joinCleanup returns DELETE statement prefixes, each missing its final
// placeholder, removing join rows that reference an item of root
func (s *Store) joinCleanup(root *metadata.Resource) []string {
	source, target := query.JoinTableColumns()
	seen := make(map[string]bool)
	var out []string
	add := func(table, column string) {
		stmt := "DELETE FROM " + table + " WHERE " + column + " = "
		if !seen[stmt] {
			seen[stmt] = true
			out = append(out, stmt)
		}
	}

	for _, f := range root.StorageFields() {
		if rel := f.Relation; rel != nil && rel.Kind == metadata.ManyToMany && rel.MappedBy == "" {
			add(rel.JoinTable, source)
		}
	}
	if s.reg == nil {
		return out
	}
	for _, other := range s.reg.Resources() {
		if other.Parent() != nil {
			continue
		}
		for _, f := range other.StorageFields() {
			rel := f.Relation
			if rel == nil || rel.Kind != metadata.ManyToMany || rel.MappedBy != "" || rel.TargetResource() == nil {
				continue
			}
			if rel.TargetResource().Root() == root {
				add(rel.JoinTable, target)
			}
		}
	}
	return out
}

// HealthCheck implements storage.Store
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

// Close implements storage.Store
func (s *Store) Close() error {
	return s.conn.Close()
}
