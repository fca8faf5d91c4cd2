package errors

import "net/http"

// Common error codes used across domains
const (
	CodeNotFound       Code = "not_found"
	CodeAlreadyExists  Code = "already_exists"
	CodeInvalidRequest Code = "invalid_request"
	CodeInternal       Code = "internal_error"
	CodeUnavailable    Code = "unavailable"
)

// Storage error codes. Every provider implementation normalizes its
// backend-native failures into exactly one of these before the error
// leaves the storage package.
const (
	CodeConfiguration  Code = "configuration"
	CodeAuthentication Code = "authentication"
	CodeAccessDenied   Code = "access_denied"
	CodeTransient      Code = "transient"
)

// ============================================================================
// Authentication Errors
// ============================================================================

var (
	// ErrInvalidCredentials is returned when authentication fails due to invalid credentials
	ErrInvalidCredentials = New(DomainAuth, "invalid_credentials", http.StatusUnauthorized,
		"Invalid credentials")

	// ErrTokenExpired is returned when a JWT token has expired
	ErrTokenExpired = New(DomainAuth, "token_expired", http.StatusUnauthorized,
		"Token has expired")

	// ErrTokenInvalid is returned when a JWT token is malformed or invalid
	ErrTokenInvalid = New(DomainAuth, "token_invalid", http.StatusUnauthorized,
		"Invalid token")

	// ErrNoToken is returned when no authentication token is provided
	ErrNoToken = New(DomainAuth, "no_token", http.StatusUnauthorized,
		"No authentication token provided")
)

// ============================================================================
// User Errors
// ============================================================================

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = New(DomainUser, CodeNotFound, http.StatusNotFound,
		"User not found")

	// ErrUserAlreadyExists is returned when trying to create a user that already exists
	ErrUserAlreadyExists = New(DomainUser, CodeAlreadyExists, http.StatusConflict,
		"User already exists")

	// ErrInvalidUserData is returned when user data fails validation
	ErrInvalidUserData = New(DomainUser, CodeInvalidRequest, http.StatusBadRequest,
		"Invalid user data")

	// ErrProviderNotAllowed is returned when an owner uploads through a
	// provider outside their allowed set
	ErrProviderNotAllowed = New(DomainUser, "provider_not_allowed", http.StatusForbidden,
		"Storage provider not allowed for this user")
)

// ============================================================================
// Provider Configuration Errors
// ============================================================================

var (
	// ErrProviderNotFound is returned when no configuration exists for a provider id
	ErrProviderNotFound = New(DomainProvider, CodeNotFound, http.StatusNotFound,
		"Storage provider not configured")

	// ErrProviderDisabled is returned when a configured provider is disabled
	ErrProviderDisabled = New(DomainProvider, "disabled", http.StatusConflict,
		"Storage provider is disabled")

	// ErrInvalidProviderConfig is returned when a provider config bag fails to decode
	ErrInvalidProviderConfig = New(DomainProvider, CodeInvalidRequest, http.StatusBadRequest,
		"Invalid provider configuration")
)

// ============================================================================
// Storage Errors (normalized taxonomy every provider call maps into)
// ============================================================================

var (
	// ErrStorageConfiguration is returned when a provider is unknown, disabled,
	// or its configuration cannot be used to construct a client
	ErrStorageConfiguration = New(DomainStorage, CodeConfiguration, http.StatusBadRequest,
		"Storage provider misconfigured")

	// ErrStorageAuthentication is returned when a remote provider rejects the
	// stored credentials. Distinct from not-found so callers can prompt for
	// re-authorization instead of reporting a missing file.
	ErrStorageAuthentication = New(DomainStorage, CodeAuthentication, http.StatusUnauthorized,
		"Storage provider credentials invalid or expired")

	// ErrStorageNotFound is returned when no object exists at the resolved path
	ErrStorageNotFound = New(DomainStorage, CodeNotFound, http.StatusNotFound,
		"Object not found in storage")

	// ErrStorageAccessDenied is returned for path-traversal rejections and
	// access-control denials. It never reveals whether the target exists.
	ErrStorageAccessDenied = New(DomainStorage, CodeAccessDenied, http.StatusForbidden,
		"Access denied")

	// ErrStorageTransient is returned for timeouts and rate limits; callers
	// may retry with backoff. Never conflated with authentication failures.
	ErrStorageTransient = New(DomainStorage, CodeTransient, http.StatusServiceUnavailable,
		"Storage provider temporarily unavailable")

	// ErrStorageUnavailable is the generic user-visible failure for
	// browsing/serving paths
	ErrStorageUnavailable = New(DomainStorage, CodeUnavailable, http.StatusServiceUnavailable,
		"Storage backend unavailable")
)

// ============================================================================
// Album / Photo Errors
// ============================================================================

var (
	// ErrAlbumNotFound is returned when an album cannot be found
	ErrAlbumNotFound = New(DomainAlbum, CodeNotFound, http.StatusNotFound,
		"Album not found")

	// ErrAlbumCycle is returned when a parent chain loops back on itself
	ErrAlbumCycle = New(DomainAlbum, "cycle", http.StatusConflict,
		"Album hierarchy contains a cycle")

	// ErrInvalidAlbumData is returned when album data fails validation
	ErrInvalidAlbumData = New(DomainAlbum, CodeInvalidRequest, http.StatusBadRequest,
		"Invalid album data")

	// ErrPhotoNotFound is returned when a photo cannot be found
	ErrPhotoNotFound = New(DomainPhoto, CodeNotFound, http.StatusNotFound,
		"Photo not found")
)

// ============================================================================
// Group Errors
// ============================================================================

var (
	// ErrGroupNotFound is returned when a group cannot be found
	ErrGroupNotFound = New(DomainGroup, CodeNotFound, http.StatusNotFound,
		"Group not found")

	// ErrGroupAlreadyExists is returned when a group alias is already taken
	ErrGroupAlreadyExists = New(DomainGroup, CodeAlreadyExists, http.StatusConflict,
		"Group already exists")
)

// ============================================================================
// Validation Errors
// ============================================================================

var (
	// ErrValidationFailed is returned when request validation fails
	ErrValidationFailed = New(DomainValidation, "validation_failed", http.StatusBadRequest,
		"Validation failed")

	// ErrInvalidJSON is returned when JSON parsing fails
	ErrInvalidJSON = New(DomainValidation, "invalid_json", http.StatusBadRequest,
		"Invalid JSON")
)

// ============================================================================
// Internal Errors
// ============================================================================

var (
	// ErrInternal is a generic internal server error
	ErrInternal = New(DomainInternal, CodeInternal, http.StatusInternalServerError,
		"Internal server error")

	// ErrRateLimited is returned when a client exceeds a request rate limit
	ErrRateLimited = New(DomainInternal, "rate_limited", http.StatusTooManyRequests,
		"Too many requests")
)

// IsAuthentication reports whether err is an authentication-class storage
// failure, the trigger for the credential lifecycle Invalid transition.
func IsAuthentication(err error) bool {
	return Is(err, ErrStorageAuthentication)
}

// IsNotFound reports whether err is a definitive not-found outcome.
func IsNotFound(err error) bool {
	return codeOf(err) == CodeNotFound
}

// IsTransient reports whether err is retryable (timeout, rate limit).
func IsTransient(err error) bool {
	return Is(err, ErrStorageTransient)
}

// IsAccessDenied reports whether err is an access-denied outcome, from
// either the path sandbox or the access-control evaluator.
func IsAccessDenied(err error) bool {
	return codeOf(err) == CodeAccessDenied
}
