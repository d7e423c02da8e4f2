package push

import (
	"errors"
	"fmt"
)

// Push errors.
var (
	ErrDeviceGone = errors.New("device token no longer registered")
)

// DeliveryError is a non-2xx response from the push gateway.
type DeliveryError struct {
	StatusCode int
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("push gateway returned HTTP %d", e.StatusCode)
}
