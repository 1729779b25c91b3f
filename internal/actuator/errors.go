package actuator

import "errors"

// Sentinel errors for actuator operations.
var (
	// ErrUnsupportedEntity marks an entity whose domain has no mapped
	// service call.
	ErrUnsupportedEntity = errors.New("actuator: unsupported entity domain")

	// ErrCommandRejected marks a non-2xx response from the controller.
	ErrCommandRejected = errors.New("actuator: command rejected")
)
