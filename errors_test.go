package zegemm

import (
	"errors"
	"testing"
)

func TestStructuredErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		wantCode ResultCode
		checkFn  func(error) bool
	}{
		{"No Device", ErrNoDeviceFound, ErrTypeResourceDiscovery, ResultErrorUninitialized, IsResourceDiscoveryError},
		{"Out Of Device Memory", ErrOutOfDeviceMemory, ErrTypeAllocation, ResultErrorOutOfDeviceMemory, IsAllocationError},
		{"Invalid Program", ErrInvalidProgramImage, ErrTypeProgram, ResultErrorModuleBuildFailure, IsProgramError},
		{"Symbol Not Found", ErrSymbolNotFound, ErrTypeProgram, ResultErrorInvalidKernelName, IsProgramError},
		{"Invalid Argument", ErrInvalidArgument, ErrTypeDispatch, ResultErrorInvalidArgumentSize, IsDispatchError},
		{"Device Lost", ErrDeviceLost, ErrTypeSynchronization, ResultErrorDeviceLost, IsSynchronizationError},
		{"Correctness", ErrCorrectness, ErrTypeCorrectness, ResultErrorUnknown, IsCorrectnessError},
		{"Command List Closed", ErrCommandListClosed, ErrTypeInvalidArg, ErrCommandListClosed.Code, IsInvalidArgError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := tt.err.(*Error)
			if !ok {
				t.Fatalf("Expected *Error, got %T", tt.err)
			}
			if e.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", e.Type, tt.wantType)
			}
			if e.Code != tt.wantCode {
				t.Errorf("Code = %#x, want %#x", e.Code, tt.wantCode)
			}
			if !tt.checkFn(tt.err) {
				t.Errorf("Type check function returned false")
			}
			if tt.err.Error() == "" {
				t.Error("Error string is empty")
			}
		})
	}
}

func TestDerivedErrorsMatchTheirSentinel(t *testing.T) {
	err := newError(ErrCommandListClosed, "AppendBarrier", "command list is %s", Closed)
	if !errors.Is(err, ErrCommandListClosed) {
		t.Errorf("errors.Is(%v, ErrCommandListClosed) = false", err)
	}
	// Same type and code, different sentinel.
	if errors.Is(err, ErrResourceDestroyed) {
		t.Errorf("errors.Is(%v, ErrResourceDestroyed) = true", err)
	}
	if err.Op != "AppendBarrier" {
		t.Errorf("Op = %q, want AppendBarrier", err.Op)
	}
}

func TestErrorUnwrap(t *testing.T) {
	baseErr := errors.New("base error")
	wrapped := wrapError(ErrContextCreationFailed, "NewContext", baseErr, "wrapped error")

	if wrapped.Unwrap() != baseErr {
		t.Errorf("Unwrap() = %v, want %v", wrapped.Unwrap(), baseErr)
	}
	if !errors.Is(wrapped, baseErr) {
		t.Error("errors.Is() should return true for the cause")
	}
	if !errors.Is(wrapped, ErrContextCreationFailed) {
		t.Error("errors.Is() should return true for the sentinel")
	}
	if !IsAllocationError(wrapped) {
		t.Error("wrapped error should be an allocation error")
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Errorf("ExitCode(nil) = %d, want 0", got)
	}
	if got := ExitCode(errors.New("plain")); got != -1 {
		t.Errorf("ExitCode(plain) = %d, want -1", got)
	}
	err := newError(ErrDeviceLost, "Execute", "lost")
	if got := ExitCode(err); got != int(ResultErrorDeviceLost) {
		t.Errorf("ExitCode(device lost) = %#x, want %#x", got, ResultErrorDeviceLost)
	}
}

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{ErrTypeResourceDiscovery, "ResourceDiscovery"},
		{ErrTypeAllocation, "Allocation"},
		{ErrTypeProgram, "Program"},
		{ErrTypeDispatch, "Dispatch"},
		{ErrTypeSynchronization, "Synchronization"},
		{ErrTypeCorrectness, "Correctness"},
		{ErrTypeInvalidArg, "InvalidArgument"},
		{ErrorType(999), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.errType.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}
