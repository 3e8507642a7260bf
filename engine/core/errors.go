package core

import (
	"errors"
)

var (
	ErrNotInitialized     = errors.New("not initialized")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrDisposed           = errors.New("already disposed")
	ErrTechniqueNotFound  = errors.New("technique not found")
	ErrRequestQueueFull   = errors.New("request queue is full")
	ErrUnsupportedDevice  = errors.New("unsupported device")
	ErrInvalidDimensions  = errors.New("invalid buffer dimensions")
	ErrUnknown            = errors.New("unknown")
)
