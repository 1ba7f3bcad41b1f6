package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/gantry/pkg/filter"
	"github.com/platinummonkey/gantry/pkg/httputil"
	"github.com/platinummonkey/gantry/pkg/hydra"
	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/observability"
	"github.com/platinummonkey/gantry/pkg/query"
	"github.com/platinummonkey/gantry/pkg/security"
)

// scopeFunc narrows a collection query, e.g. to the children of a link parent
type scopeFunc func(ctx context.Context, b *query.Builder) error

// getCollection handles GET /prefix
func (s *Server) getCollection(res *metadata.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serveCollection(w, r, res, nil)
	}
}

// getLinkedCollection handles link routes such as GET /chicken_coops/{id}/chickens
func (s *Server) getLinkedCollection(res *metadata.Resource, link metadata.Link) http.HandlerFunc {
	parent := s.reg.MustGet(link.FromClass)
	variable := link.Identifier
	if variable == "" {
		variable = "id"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		parentID, err := parent.ParseIdentifier(mux.Vars(r)[variable])
		if err != nil {
			s.writeError(w, r, res, fmt.Errorf("%s: %w", err, ErrInvalidIdentifier))
			return
		}
		found, err := s.store.Exists(ctx, parent, parentID)
		if err != nil {
			s.writeError(w, r, res, err)
			return
		}
		if !found {
			s.writeProblem(w, http.StatusNotFound, "Not Found")
			return
		}

		s.serveCollection(w, r, res, func(_ context.Context, b *query.Builder) error {
			col, err := b.Resolve(link.Property)
			if err != nil {
				return err
			}
			b.Where(col.Expr + " = " + b.Arg(parentID))
			return nil
		})
	}
}

func (s *Server) serveCollection(w http.ResponseWriter, r *http.Request, res *metadata.Resource, scope scopeFunc) {
	ctx, span := observability.StartSpan(r.Context(), "api.collection", attribute.String("resource", res.Name))
	defer span.End()

	op, _ := res.Operation(metadata.OpGetCollection)
	if err := s.authorize(ctx, res, op, nil, nil); err != nil {
		s.writeError(w, r, res, err)
		return
	}

	paging, err := paginationFor(res, r)
	if err != nil {
		s.writeError(w, r, res, err)
		return
	}

	set := s.filters[res.Name]
	params := filter.ParseQuery(r.URL.RawQuery)
	b := query.NewBuilder(s.store.Dialect(), res)
	if scope != nil {
		if err := scope(ctx, b); err != nil {
			s.writeError(w, r, res, err)
			return
		}
	}
	if err := set.Apply(ctx, b, params); err != nil {
		s.writeError(w, r, res, err)
		return
	}
	if err := defaultOrder(b, res); err != nil {
		s.writeError(w, r, res, err)
		return
	}
	if paging.enabled {
		b.Paginate(paging.itemsPerPage, (paging.page-1)*paging.itemsPerPage)
	}

	items, total, err := s.store.List(ctx, res, b)
	if err != nil {
		s.writeError(w, r, res, err)
		return
	}
	if s.metrics != nil {
		s.metrics.CollectionItemsReturned.WithLabelValues(res.Name).Observe(float64(len(items)))
	}

	doc, err := s.normalizer.Collection(ctx, hydra.Page{
		Resource:     res,
		Members:      items,
		Total:        total,
		Groups:       res.NormalizationGroupsFor(op),
		Path:         r.URL.Path,
		Query:        r.URL.Query(),
		Paginated:    paging.enabled,
		CurrentPage:  paging.page,
		ItemsPerPage: paging.itemsPerPage,
		PageParam:    PageParameter,
		Search:       set.Describe(),
	})
	if err != nil {
		s.writeError(w, r, res, err)
		return
	}
	httputil.WriteJSONLD(w, http.StatusOK, doc)
}

// defaultOrder applies the resource order when no filter ordered the
// query, then the identifier so pages are stable
func defaultOrder(b *query.Builder, res *metadata.Resource) error {
	if b.HasOrder() {
		return nil
	}
	for _, spec := range res.Order {
		col, err := b.Resolve(spec.Property)
		if err != nil {
			return err
		}
		b.OrderBy(col.Expr, spec.Direction, query.NullsDefault)
	}
	for _, f := range res.Root().IdentifierFields() {
		b.OrderBy(query.RootAlias+"."+f.Column, query.DirectionAsc, query.NullsDefault)
	}
	return nil
}

type pagination struct {
	enabled      bool
	page         int
	itemsPerPage int
}

// paginationFor reads the paging parameters a resource lets clients control
func paginationFor(res *metadata.Resource, r *http.Request) (pagination, error) {
	cfg := res.Pagination
	p := pagination{enabled: cfg.Enabled, page: 1, itemsPerPage: cfg.ItemsPerPage}
	if p.itemsPerPage <= 0 {
		p.itemsPerPage = metadata.DefaultItemsPerPage
	}

	if cfg.ClientEnabled {
		enabled, err := httputil.ParseQueryBool(r, PaginationParameter, p.enabled)
		if err != nil {
			return p, badRequest("Pagination parameter must be a boolean.")
		}
		p.enabled = enabled
	}
	if cfg.ClientItemsPerPage {
		n, err := httputil.ParseQueryInt(r, ItemsPerPageParameter, p.itemsPerPage)
		if err != nil || n < 1 {
			return p, badRequest("Item per page parameter should not be less than 1.")
		}
		p.itemsPerPage = n
	}
	if cfg.MaxItemsPerPage > 0 && p.itemsPerPage > cfg.MaxItemsPerPage {
		p.itemsPerPage = cfg.MaxItemsPerPage
	}

	page, err := httputil.ParseQueryInt(r, PageParameter, 1)
	if err != nil || page < 1 {
		return p, badRequest("Page should not be less than 1.")
	}
	p.page = page
	return p, nil
}

// getItem handles GET /prefix/{id}
func (s *Server) getItem(res *metadata.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		op, _ := res.Operation(metadata.OpGet)

		id, item, err := s.loadItem(ctx, r, res)
		if err != nil {
			s.writeError(w, r, res, err)
			return
		}
		if err := s.authorize(ctx, res, op, item, nil); err != nil {
			s.writeError(w, r, res, err)
			return
		}

		doc, err := s.normalizer.Item(ctx, res, item, res.NormalizationGroupsFor(op))
		if err != nil {
			s.writeError(w, r, res, err)
			return
		}
		w.Header().Set("Content-Location", s.reg.IRI(res, id))
		httputil.WriteJSONLD(w, http.StatusOK, doc)
	}
}

// createItem handles POST /prefix
func (s *Server) createItem(res *metadata.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := observability.StartSpan(r.Context(), "api.create", attribute.String("resource", res.Name))
		defer span.End()

		op, _ := res.Operation(metadata.OpPost)
		if err := s.authorize(ctx, res, op, nil, nil); err != nil {
			s.writeError(w, r, res, err)
			return
		}

		input, err := s.readInput(r, res, op)
		if err != nil {
			s.writeError(w, r, res, err)
			return
		}
		user := security.UserFromContext(ctx)
		if err := s.checker.Authorize(op.SecurityPostDenormalize, op.SecurityMessage, user, input, nil); err != nil {
			s.writeError(w, r, res, err)
			return
		}
		if violations := s.validator.Validate(res, input); len(violations) > 0 {
			s.writeError(w, r, res, violations)
			return
		}

		created, err := s.store.Create(ctx, res, input)
		if err != nil {
			s.writeError(w, r, res, err)
			return
		}

		doc, err := s.normalizer.Item(ctx, res, created, res.NormalizationGroupsFor(op))
		if err != nil {
			s.writeError(w, r, res, err)
			return
		}
		iri := s.reg.IRI(res, res.Root().IdentifierValue(created))
		w.Header().Set("Location", iri)
		w.Header().Set("Content-Location", iri)
		httputil.WriteJSONLD(w, http.StatusCreated, doc)
	}
}

// updateItem handles PUT and PATCH /prefix/{id}. Both write only the
// properties present in the body.
func (s *Server) updateItem(res *metadata.Resource, kind metadata.OperationKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := observability.StartSpan(r.Context(), "api.update", attribute.String("resource", res.Name))
		defer span.End()

		op, _ := res.Operation(kind)
		id, previous, err := s.loadItem(ctx, r, res)
		if err != nil {
			s.writeError(w, r, res, err)
			return
		}
		if err := s.authorize(ctx, res, op, previous, nil); err != nil {
			s.writeError(w, r, res, err)
			return
		}

		input, err := s.readInput(r, res, op)
		if err != nil {
			s.writeError(w, r, res, err)
			return
		}
		merged := mergeItems(previous, input)
		user := security.UserFromContext(ctx)
		if err := s.checker.Authorize(op.SecurityPostDenormalize, op.SecurityMessage, user, merged, previous); err != nil {
			s.writeError(w, r, res, err)
			return
		}
		if violations := s.validator.Validate(res, merged); len(violations) > 0 {
			s.writeError(w, r, res, violations)
			return
		}

		changes := make(metadata.Item, len(input))
		for key := range input {
			changes[key] = merged[key]
		}
		updated, err := s.store.Update(ctx, res, id, changes)
		if err != nil {
			s.writeError(w, r, res, err)
			return
		}

		doc, err := s.normalizer.Item(ctx, res, updated, res.NormalizationGroupsFor(op))
		if err != nil {
			s.writeError(w, r, res, err)
			return
		}
		w.Header().Set("Content-Location", s.reg.IRI(res, id))
		httputil.WriteJSONLD(w, http.StatusOK, doc)
	}
}

// deleteItem handles DELETE /prefix/{id}
func (s *Server) deleteItem(res *metadata.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := observability.StartSpan(r.Context(), "api.delete", attribute.String("resource", res.Name))
		defer span.End()

		op, _ := res.Operation(metadata.OpDelete)
		id, item, err := s.loadItem(ctx, r, res)
		if err != nil {
			s.writeError(w, r, res, err)
			return
		}
		if err := s.authorize(ctx, res, op, item, nil); err != nil {
			s.writeError(w, r, res, err)
			return
		}
		if err := s.store.Delete(ctx, res, id); err != nil {
			s.writeError(w, r, res, err)
			return
		}

		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"resource": res.Name,
			"id":       res.FormatIdentifier(id),
		}).Info("item deleted")
		httputil.WriteNoContent(w)
	}
}

// loadItem parses the {id} path variable and fetches the item
func (s *Server) loadItem(ctx context.Context, r *http.Request, res *metadata.Resource) (any, metadata.Item, error) {
	raw, err := httputil.ParsePathString(r, "id")
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", err, ErrInvalidIdentifier)
	}
	id, err := res.ParseIdentifier(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", err, ErrInvalidIdentifier)
	}
	item, err := s.store.Get(ctx, res, id)
	if err != nil {
		return nil, nil, err
	}
	return id, item, nil
}

// readInput decodes the request body into an item writable by op
func (s *Server) readInput(r *http.Request, res *metadata.Resource, op metadata.Operation) (metadata.Item, error) {
	var body any
	if err := httputil.ParseJSON(r, &body); err != nil {
		if errors.Is(err, httputil.ErrEmptyBody) {
			return nil, err
		}
		return nil, badRequest("Syntax error")
	}
	object, ok := body.(map[string]any)
	if !ok {
		return nil, badRequest("The input data must be an object.")
	}
	return s.normalizer.Denormalize(res, object, res.DenormalizationGroupsFor(op))
}

// authorize evaluates the resource then the operation security expression
func (s *Server) authorize(ctx context.Context, res *metadata.Resource, op metadata.Operation, object, previous metadata.Item) error {
	user := security.UserFromContext(ctx)
	if err := s.checker.Authorize(res.Security, res.SecurityMessage, user, object, previous); err != nil {
		return err
	}
	return s.checker.Authorize(op.Security, op.SecurityMessage, user, object, previous)
}

// mergeItems overlays input on previous. Embedded values merge per sub
// property.
func mergeItems(previous, input metadata.Item) metadata.Item {
	merged := previous.Clone()
	for key, value := range input {
		nested, isNested := value.(metadata.Item)
		existing, hadNested := merged[key].(metadata.Item)
		if isNested && hadNested {
			for sub, v := range nested {
				existing[sub] = v
			}
			continue
		}
		merged[key] = value
	}
	return merged
}

// requestError is malformed client input rendered as 400 with its message
type requestError struct {
	message string
}

func (e *requestError) Error() string { return e.message }

func (e *requestError) Unwrap() error { return ErrBadRequest }

func badRequest(message string) error {
	return &requestError{message: message}
}
