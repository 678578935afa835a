// Package rate provides the upstream request throttle placed in front of
// login, signup, forgot-password, resend-verification and second-factor
// verification.
//
// # Window semantics
//
// Fixed-window counters: INCR + EXPIRE on first hit. Keys are
// <prefix><action>:<key>, where key is a client IP or a lower-cased email.
//
// This throttle is a layered defense only. Account lockout is enforced by the
// account store regardless of whether Redis is configured.
package rate
