// Package apperr defines the error kinds shared by every hiregate service.
//
// Services return *Error values carrying a Kind; the HTTP layer maps the kind
// to a status code with Kind.HTTPStatus and shows PublicMessage to clients.
// Unexpected storage failures are wrapped with FromStore so that context
// cancellation surfaces as Unavailable and everything else as Internal.
package apperr
