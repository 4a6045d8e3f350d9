package voice

import "fmt"

// ServiceError wraps a downstream AI or storage service failure.
type ServiceError struct {
	Service   string
	Retryable bool
	Err       error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NewServiceError builds a ServiceError for the named service.
func NewServiceError(service string, retryable bool, err error) *ServiceError {
	return &ServiceError{Service: service, Retryable: retryable, Err: err}
}
