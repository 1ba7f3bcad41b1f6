package api

import (
	"net/http"

	"github.com/platinummonkey/gantry/pkg/httputil"
	"github.com/platinummonkey/gantry/pkg/hydra"
	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/observability"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	// Infrastructure routes
	if s.health != nil {
		observability.RegisterHealthRoutes(s.router, s.health)
	}
	if s.metricsRegistry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.metricsRegistry)).Methods("GET")
	}

	// Documentation routes
	s.router.HandleFunc("/", s.entrypoint).Methods("GET")
	s.router.HandleFunc("/contexts/{name}", s.context).Methods("GET")
	s.docs.RegisterRoutes(s.router)

	// Link routes go first so nested paths are never read as identifiers
	for _, res := range s.reg.Resources() {
		for _, link := range res.Links {
			s.router.HandleFunc(link.Path, s.getLinkedCollection(res, link)).Methods("GET")
		}
	}

	// Resource routes
	for _, res := range s.reg.Resources() {
		collection := res.IRIPrefix
		item := res.IRIPrefix + "/{id}"

		if res.HasOperation(metadata.OpGetCollection) {
			s.router.HandleFunc(collection, s.getCollection(res)).Methods("GET")
		}
		if res.HasOperation(metadata.OpPost) {
			s.router.HandleFunc(collection, s.createItem(res)).Methods("POST")
		}
		if res.HasOperation(metadata.OpGet) {
			s.router.HandleFunc(item, s.getItem(res)).Methods("GET")
		}
		if res.HasOperation(metadata.OpPut) {
			s.router.HandleFunc(item, s.updateItem(res, metadata.OpPut)).Methods("PUT")
		}
		if res.HasOperation(metadata.OpPatch) {
			s.router.HandleFunc(item, s.updateItem(res, metadata.OpPatch)).Methods("PATCH")
		}
		if res.HasOperation(metadata.OpDelete) {
			s.router.HandleFunc(item, s.deleteItem(res)).Methods("DELETE")
		}
	}
}

// entrypoint lists the collection of every resource exposing one
func (s *Server) entrypoint(w http.ResponseWriter, r *http.Request) {
	var exposed []*metadata.Resource
	for _, res := range s.reg.Resources() {
		if res.HasOperation(metadata.OpGetCollection) {
			exposed = append(exposed, res)
		}
	}
	httputil.WriteJSONLD(w, http.StatusOK, hydra.Entrypoint(exposed))
}

// context serves the JSON-LD context of a resource
func (s *Server) context(w http.ResponseWriter, r *http.Request) {
	name, err := httputil.ParsePathString(r, "name")
	if err != nil {
		s.writeError(w, r, nil, err)
		return
	}
	res, ok := s.reg.Get(name)
	if !ok {
		s.writeProblem(w, http.StatusNotFound, "Not Found")
		return
	}
	httputil.WriteJSONLD(w, http.StatusOK, hydra.Context(res))
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeProblem(w, http.StatusNotFound, `No route found for "`+r.Method+" "+r.URL.Path+`"`)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeProblem(w, http.StatusMethodNotAllowed, `No route found for "`+r.Method+" "+r.URL.Path+`": Method Not Allowed`)
}
