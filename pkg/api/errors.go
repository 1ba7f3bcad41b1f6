package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/platinummonkey/gantry/pkg/filter"
	"github.com/platinummonkey/gantry/pkg/httputil"
	"github.com/platinummonkey/gantry/pkg/hydra"
	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/observability"
	"github.com/platinummonkey/gantry/pkg/security"
	"github.com/platinummonkey/gantry/pkg/storage"
	"github.com/platinummonkey/gantry/pkg/validation"
)

var (
	// ErrInvalidIdentifier is returned for item paths whose identifier
	// cannot be parsed; it renders as 404
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrBadRequest wraps malformed request input
	ErrBadRequest = errors.New("bad request")
)

// writeError maps an error onto a status code and hydra document.
// res may be nil outside resource routes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, res *metadata.Resource, err error) {
	resource := ""
	if res != nil {
		resource = res.Name
	}

	var denied *security.AccessDeniedError
	var unsupported *filter.UnsupportedParameterError
	var missing *filter.MissingParametersError
	var violations validation.ViolationList
	var input *hydra.InputError

	switch {
	case errors.As(err, &denied):
		status := denied.StatusCode()
		if s.metrics != nil {
			s.metrics.SecurityDenialsTotal.WithLabelValues(resource, strconv.Itoa(status)).Inc()
		}
		s.writeProblem(w, status, denied.Message)

	case errors.As(err, &unsupported):
		s.writeProblem(w, http.StatusBadRequest, filter.ErrParameterNotSupported.Error())

	case errors.As(err, &missing):
		list := make(validation.ViolationList, 0, len(missing.Variables))
		for _, variable := range missing.Variables {
			list = append(list, validation.Violation{
				PropertyPath: variable,
				Message:      validation.MessageNotBlank,
				Code:         validation.CodeNotBlank,
			})
		}
		s.writeViolations(w, resource, list)

	case errors.As(err, &violations):
		s.writeViolations(w, resource, violations)

	case errors.As(err, &input):
		s.writeProblem(w, http.StatusBadRequest, input.Message)

	case errors.Is(err, storage.ErrNotFound), errors.Is(err, ErrInvalidIdentifier):
		s.writeProblem(w, http.StatusNotFound, "Not Found")

	case errors.Is(err, httputil.ErrEmptyBody):
		s.writeProblem(w, http.StatusBadRequest, "Syntax error")

	case errors.Is(err, ErrBadRequest), errors.Is(err, storage.ErrInvalidItem):
		s.writeProblem(w, http.StatusBadRequest, err.Error())

	default:
		observability.FromContext(r.Context()).WithError(err).WithField("resource", resource).Error("request failed")
		s.writeProblem(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func (s *Server) writeProblem(w http.ResponseWriter, status int, detail string) {
	httputil.WriteJSONLD(w, status, hydra.Error(status, detail))
}

func (s *Server) writeViolations(w http.ResponseWriter, resource string, list validation.ViolationList) {
	if s.metrics != nil {
		s.metrics.ValidationViolationsTotal.WithLabelValues(resource).Add(float64(len(list)))
	}
	httputil.WriteJSONLD(w, http.StatusUnprocessableEntity, hydra.Violations(http.StatusUnprocessableEntity, list))
}
