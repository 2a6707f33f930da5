// Package errs holds the API error shape. Services return *HTTPError for
// anything the caller can act on (a missing program, a payout in the wrong
// state, a banned partner); the global error handler renders it as JSON.
package errs
