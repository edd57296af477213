// Package errors defines the error taxonomy of the obsws client.
//
// Every failure surfaced by the endpoint parser, the message codec, the
// authentication helpers and the session wraps one of the sentinel errors
// below, so callers can classify failures with errors.Is and pull details out
// of the typed errors with errors.As.
package errors
