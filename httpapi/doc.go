// Package httpapi serves the hubauth engine over HTTP.
//
// The router is chi. Every request passes through the same chain:
// request id, access log, panic recovery, CORS, body limit, client info and
// the CSRF double-submit guard. Routes that need an identity sit behind
// middleware.Guard.
//
// Errors are written as {"error": message, "code": CODE}. Engine errors are
// mapped to status codes in one place (writeEngineError); anything
// unrecognised becomes a 500 with a generic message, and the cause is
// logged with the request id.
//
// Lifecycle:
//
//	srv, err := httpapi.New(deps)
//	err = srv.Start(ctx)
//	defer srv.Close()
package httpapi
