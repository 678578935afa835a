// Package middleware adapts hubauth.Engine to net/http.
//
// # Guards
//
//   - [Guard] uses the engine-wide validation mode unless overridden.
//   - [RequireJWTOnly] checks signature and expiry only.
//   - [RequireStrict] also checks the session registry.
//
// Each guard reads the Authorization header, calls Engine.Validate and
// stores the result in the request context, where handlers read it with
// [AuthResultFromContext]. Rejections are written as
// {"error": message, "code": code}.
//
// [ClientInfo] records the client address and user agent for the engine.
package middleware
