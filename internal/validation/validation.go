// Package validation binds incoming requests into typed payloads and turns
// validator/v10 failures into the field-level errors of errs.HTTPError.
package validation
