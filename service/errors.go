package service

import "errors"

// Domain errors. Handlers map these onto HTTP status codes; everything else
// surfaces as an internal error.
var (
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the actor is not allowed to perform the action,
	// e.g. a non-creator activating a session.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState means the action is not valid for the session's
	// current lifecycle state, e.g. voting on a draft or closed session.
	ErrInvalidState = errors.New("invalid session state")

	// ErrInvalidRestaurant means the vote references a restaurant that is
	// not part of the session.
	ErrInvalidRestaurant = errors.New("restaurant is not part of this session")

	// ErrVoteLimitExceeded means the user has used up the session's
	// votes-per-user allowance.
	ErrVoteLimitExceeded = errors.New("vote limit exceeded")

	// ErrValidation means the input is malformed, e.g. votes_per_user < 1.
	ErrValidation = errors.New("validation failed")
)
