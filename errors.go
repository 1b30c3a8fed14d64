// Package zegemm structured error types for device and verification failures
package zegemm

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// No device or driver exposing the required compute type.
	ErrTypeResourceDiscovery ErrorType = iota
	// Host or device out of memory.
	ErrTypeAllocation
	// Bad program image or missing symbol.
	ErrTypeProgram
	// Bad argument binding or invalid grid.
	ErrTypeDispatch
	// Device lost, submission rejected, timeout.
	ErrTypeSynchronization
	// Computed result outside tolerance.
	ErrTypeCorrectness
	// Invalid use of the API by the host program.
	ErrTypeInvalidArg
)

// ResultCode is the numeric status a device call reports. Commands exit
// with it when a call fails.
type ResultCode int32

const (
	ResultSuccess                  ResultCode = 0
	ResultNotReady                 ResultCode = 1
	ResultErrorDeviceLost          ResultCode = 0x70000001
	ResultErrorOutOfHostMemory     ResultCode = 0x70000002
	ResultErrorOutOfDeviceMemory   ResultCode = 0x70000003
	ResultErrorModuleBuildFailure  ResultCode = 0x70000004
	ResultErrorNotAvailable        ResultCode = 0x70010001
	ResultErrorUninitialized       ResultCode = 0x78000001
	ResultErrorUnsupportedFeature  ResultCode = 0x78000003
	ResultErrorInvalidArgument     ResultCode = 0x78000004
	ResultErrorHandleObjectInUse   ResultCode = 0x78000006
	ResultErrorInvalidSize         ResultCode = 0x78000008
	ResultErrorInvalidKernelName   ResultCode = 0x78000011
	ResultErrorInvalidGroupSize    ResultCode = 0x78000013
	ResultErrorInvalidArgumentSize ResultCode = 0x78000016
	ResultErrorUnknown             ResultCode = 0x7ffffffe
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Op      string      // Operation that failed
	Message string      // Human-readable message
	Code    ResultCode  // Device result code
	Err     error       // Underlying error if any
	Context interface{} // Additional context

	sentinel *Error // Pre-defined error this one was derived from
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error in %s: %s (caused by: %v)",
			e.Type, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error in %s: %s", e.Type, e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the pre-defined error e was derived from, so
// that errors.Is(err, ErrDeviceLost) holds for every device-lost failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e == t || (e.sentinel != nil && e.sentinel == t)
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeResourceDiscovery:
		return "ResourceDiscovery"
	case ErrTypeAllocation:
		return "Allocation"
	case ErrTypeProgram:
		return "Program"
	case ErrTypeDispatch:
		return "Dispatch"
	case ErrTypeSynchronization:
		return "Synchronization"
	case ErrTypeCorrectness:
		return "Correctness"
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// newError derives an error from a sentinel, keeping its type and code.
func newError(sentinel *Error, op string, format string, args ...interface{}) *Error {
	return &Error{
		Type:    sentinel.Type,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
		Code:    sentinel.Code,

		sentinel: sentinel,
	}
}

// wrapError derives an error from a sentinel with an underlying cause.
func wrapError(sentinel *Error, op string, cause error, format string, args ...interface{}) *Error {
	e := newError(sentinel, op, format, args...)
	e.Err = cause
	return e
}

// Common pre-defined errors

var (
	ErrNoDeviceFound = &Error{Type: ErrTypeResourceDiscovery, Op: "AcquireDevice",
		Message: "no device exposing the required compute type", Code: ResultErrorUninitialized}

	ErrContextCreationFailed = &Error{Type: ErrTypeAllocation, Op: "NewContext",
		Message: "context creation failed", Code: ResultErrorOutOfDeviceMemory}

	ErrOutOfDeviceMemory = &Error{Type: ErrTypeAllocation, Op: "Malloc",
		Message: "out of device memory", Code: ResultErrorOutOfDeviceMemory}

	ErrOutOfHostMemory = &Error{Type: ErrTypeAllocation, Op: "NewMatrix",
		Message: "out of host memory", Code: ResultErrorOutOfHostMemory}

	ErrInvalidProgramImage = &Error{Type: ErrTypeProgram, Op: "LoadModule",
		Message: "not a recognized device program image", Code: ResultErrorModuleBuildFailure}

	ErrSymbolNotFound = &Error{Type: ErrTypeProgram, Op: "Kernel",
		Message: "kernel symbol not found", Code: ResultErrorInvalidKernelName}

	ErrInvalidArgument = &Error{Type: ErrTypeDispatch, Op: "SetArgumentValue",
		Message: "invalid kernel argument", Code: ResultErrorInvalidArgumentSize}

	ErrInvalidTileAlignment = &Error{Type: ErrTypeDispatch, Op: "PlanSGEMM",
		Message: "matrix dimensions not representable after alignment", Code: ResultErrorInvalidSize}

	ErrInvalidGroupSize = &Error{Type: ErrTypeDispatch, Op: "SetGroupSize",
		Message: "invalid group size", Code: ResultErrorInvalidGroupSize}

	ErrDeviceLost = &Error{Type: ErrTypeSynchronization, Op: "Queue.Execute",
		Message: "device lost", Code: ResultErrorDeviceLost}

	ErrSubmissionRejected = &Error{Type: ErrTypeSynchronization, Op: "Queue.Execute",
		Message: "submission rejected", Code: ResultErrorInvalidArgument}

	ErrTimeout = &Error{Type: ErrTypeSynchronization, Op: "Queue.Synchronize",
		Message: "timed out waiting for completion", Code: ResultNotReady}

	ErrCommandListClosed = &Error{Type: ErrTypeInvalidArg, Op: "CommandList.Append",
		Message: "command list is not recording", Code: ResultErrorInvalidArgument}

	ErrResourceInUse = &Error{Type: ErrTypeInvalidArg, Op: "Destroy",
		Message: "resource still in use", Code: ResultErrorHandleObjectInUse}

	ErrResourceDestroyed = &Error{Type: ErrTypeInvalidArg, Op: "Destroy",
		Message: "resource already destroyed", Code: ResultErrorInvalidArgument}

	ErrInvalidSurface = &Error{Type: ErrTypeInvalidArg, Op: "NewSurface",
		Message: "invalid surface description", Code: ResultErrorInvalidSize}

	ErrBadHostBuffer = &Error{Type: ErrTypeInvalidArg, Op: "Transfer",
		Message: "host buffer does not match surface", Code: ResultErrorInvalidSize}

	ErrCorrectness = &Error{Type: ErrTypeCorrectness, Op: "Compare",
		Message: "result outside tolerance", Code: ResultErrorUnknown}
)

// ExitCode returns the process exit status for err: 0 for nil, the device
// result code for structured errors, -1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) && e.Code != ResultSuccess {
		return int(e.Code)
	}
	return -1
}

func isType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsResourceDiscoveryError checks if an error is a device discovery error
func IsResourceDiscoveryError(err error) bool { return isType(err, ErrTypeResourceDiscovery) }

// IsAllocationError checks if an error is an allocation error
func IsAllocationError(err error) bool { return isType(err, ErrTypeAllocation) }

// IsProgramError checks if an error is a program loading error
func IsProgramError(err error) bool { return isType(err, ErrTypeProgram) }

// IsDispatchError checks if an error is a dispatch error
func IsDispatchError(err error) bool { return isType(err, ErrTypeDispatch) }

// IsSynchronizationError checks if an error is a synchronization error
func IsSynchronizationError(err error) bool { return isType(err, ErrTypeSynchronization) }

// IsCorrectnessError checks if an error is a correctness failure
func IsCorrectnessError(err error) bool { return isType(err, ErrTypeCorrectness) }

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool { return isType(err, ErrTypeInvalidArg) }
