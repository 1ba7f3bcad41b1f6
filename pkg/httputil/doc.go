// Package httputil provides HTTP helpers shared by the API handlers.
//
// # Responses
//
//	httputil.WriteJSONLD(w, http.StatusOK, doc)
//	httputil.WriteErrorMessage(w, http.StatusUnauthorized, "Invalid credentials.")
//	httputil.WriteNoContent(w)
//
// # Requests
//
// Bodies decode with numbers preserved as json.Number so decimal fields keep
// their precision:
//
//	var body map[string]interface{}
//	if err := httputil.ParseJSON(r, &body); err != nil {
//		...
//	}
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.CORSMiddleware([]string{"*"}),
//		httputil.ContentTypeMiddleware,
//	)(router)
package httputil
