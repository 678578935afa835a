// Package csrf implements double-submit cookie protection for browser
// clients.
//
// [Middleware] makes sure every client holds a csrf_token cookie and rejects
// unsafe requests whose x-csrf-token header does not equal that cookie. The
// cookie is readable by scripts; the check relies on other origins being
// unable to read it, not on secrecy from the page itself.
package csrf
