package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrChannelUnavailable is returned when the destination chat channel cannot
// be resolved, typically because the chat session is not ready yet.
var ErrChannelUnavailable = stderrors.New("destination channel unavailable")

// AuthError reports a failed bearer token exchange. No token accompanies it.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a failed assignment list retrieval. StatusCode is zero
// when the request never produced a response.
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("assignment fetch failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("assignment fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DeliveryError reports a chat message that could not be delivered.
type DeliveryError struct {
	AssignmentID string
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery of assignment %s failed: %v", e.AssignmentID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsAuth reports whether err contains an AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return stderrors.As(err, &target)
}

// IsFetch reports whether err contains a FetchError.
func IsFetch(err error) bool {
	var target *FetchError
	return stderrors.As(err, &target)
}

// IsDelivery reports whether err contains a DeliveryError.
func IsDelivery(err error) bool {
	var target *DeliveryError
	return stderrors.As(err, &target)
}
