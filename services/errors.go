package services

import "fmt"

// ValidationError reports missing or malformed input. Nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthorizationError reports that the actor may not perform the operation.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

// NotFoundError reports that a referenced post or group does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// AdmissionBlockedError carries the classifier's reason for refusing a write.
type AdmissionBlockedError struct {
	Reason string
}

func (e *AdmissionBlockedError) Error() string {
	return "Post blocked: " + e.Reason
}

// ConflictError reports a uniqueness violation, such as a taken group name.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}
