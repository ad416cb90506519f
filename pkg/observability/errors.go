package observability

import (
	"github.com/hyp3rd/ewrap"
)

var (
	// ErrSinkConstruction marks activation failures raised while building the sink.
	ErrSinkConstruction = ewrap.New("observability sink construction failed")
	// ErrNotActive is returned by Shutdown when nothing is active, including a
	// second shutdown of the same instance.
	ErrNotActive = ewrap.New("observability is not active")
	// ErrNilCollaborator is returned by ActivateWith when a collaborator is nil.
	ErrNilCollaborator = ewrap.New("observability collaborator is nil")
)

// sinkConstructionError classifies a sink failure as ErrSinkConstruction
// while keeping the builder's cause reachable.
type sinkConstructionError struct {
	cause error
}

func newSinkConstructionError(cause error) error {
	if cause == nil {
		return ErrSinkConstruction
	}

	return &sinkConstructionError{cause: cause}
}

// Error implements error.
func (s *sinkConstructionError) Error() string {
	return ErrSinkConstruction.Error() + ": " + s.cause.Error()
}

// Unwrap implements errors.Wrapper.
func (s *sinkConstructionError) Unwrap() []error {
	return []error{ErrSinkConstruction, s.cause}
}
