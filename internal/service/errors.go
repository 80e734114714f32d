// internal/service/errors.go
package service

import "errors"

var (
	// ErrDeviceUnavailable means the device could not be (re)initialized
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrInvalidCommand means the command is not in the alphabet
	ErrInvalidCommand = errors.New("invalid command")
	// ErrSendFailed means every send attempt failed
	ErrSendFailed = errors.New("failed to send command")
)
