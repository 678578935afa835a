// Package jwt issues and verifies the signed token kinds used by hubauth:
// access, refresh and temp (second-factor) tokens.
//
// Every token carries a typ claim; a token of one kind is rejected by the
// parser of another. Parse distinguishes an expired token from an invalid
// one so refresh callers can choose between retrying and re-authenticating.
package jwt
