// Package link carries face positions to the tracking peripheral.
package link

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by SendPosition when the link is not connected.
var ErrNotReady = errors.New("link not ready")

// Link is a low-bandwidth connection to the peripheral.
type Link interface {
	// IsReady reports whether SendPosition can currently succeed.
	IsReady() bool
	// SendPosition writes a normalized display-space position.
	SendPosition(x, y float64) error
	Close() error
}

// Payload encodes a position the way the peripheral firmware parses it:
// two fixed-precision decimals and a newline.
func Payload(x, y float64) []byte {
	return fmt.Appendf(nil, "%.3f,%.3f\n", x, y)
}
