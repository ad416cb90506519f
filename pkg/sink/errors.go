package sink

import "github.com/hyp3rd/ewrap"

var (
	// ErrClosed is returned by Write after Close.
	ErrClosed = ewrap.New("sink closed")
	// ErrInvalidDestination reports a destination the builder cannot interpret.
	ErrInvalidDestination = ewrap.New("invalid sink destination")
	// ErrProjectUnresolved reports that no Cloud Logging project could be determined.
	ErrProjectUnresolved = ewrap.New("cloud logging project id unresolved")
)
