package service

import "fmt"

// BusinessError models expected negative outcomes (validation, missing
// records, permission) as values rather than panics or bare strings.
type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("invalid value for %q: %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}

func NewNotFound(resource, id string) *BusinessError {
	return &BusinessError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func NewPermissionDenied(action string, actorID int64) *BusinessError {
	return &BusinessError{
		Code:    "PERMISSION_DENIED",
		Message: fmt.Sprintf("no permission to %s", action),
		Details: map[string]any{
			"action": action,
			"actor":  actorID,
		},
	}
}
