package errors

import "errors"

// Precondition failures raised locally, before any network call.
var (
	// ErrNotAuthenticated is returned when an operation requires a primary
	// authenticated session and none is stored.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrMissingIngressToken is returned when an ingress call is attempted
	// without a stored access token.
	ErrMissingIngressToken = errors.New("access token required for ingress endpoint")

	// ErrNoAccessToken is returned when a provider callback exchange
	// completed without yielding a session.
	ErrNoAccessToken = errors.New("no access token received")

	// ErrLinkFailed is returned when an account-link exchange was rejected
	// by the upstream service.
	ErrLinkFailed = errors.New("account linking failed")

	// ErrEmptyCart is returned when a checkout is requested with no line
	// items in the cart.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrConflictingAuthModes is returned when a request selects more than
	// one authorization mode.
	ErrConflictingAuthModes = errors.New("customer token and API key authorization are mutually exclusive")
)
