package opencl

import (
	"errors"
	"fmt"
)

// DeviceType describes the class of an OpenCL device.
type DeviceType string

const (
	DeviceTypeGPU         DeviceType = "GPU"
	DeviceTypeCPU         DeviceType = "CPU"
	DeviceTypeAccelerator DeviceType = "Accelerator"
	DeviceTypeDefault     DeviceType = "Default"
	DeviceTypeUnknown     DeviceType = "Unknown"
)

// DeviceInfo captures metadata about the selected OpenCL device.
type DeviceInfo struct {
	Name            string
	Vendor          string
	Version         string
	Type            DeviceType
	MaxComputeUnits uint32
}

// PlatformInfo captures metadata about the selected OpenCL platform.
type PlatformInfo struct {
	Name    string
	Vendor  string
	Version string
}

// Config sizes the per-worker resource sets.
type Config struct {
	Workers     int
	BatchWidth  int // global work size
	LocalWidth  int // local work size, 0 lets the runtime pick
	OutputSize  int // bytes, 32 per work item
	ScratchSize int // bytes
	Options     string
	EntryPoint  string
}

// Validate rejects sizes the device calls would fail on later.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.BatchWidth <= 0 {
		return fmt.Errorf("batch width must be positive, got %d", c.BatchWidth)
	}
	if c.LocalWidth < 0 || (c.LocalWidth > 0 && c.BatchWidth%c.LocalWidth != 0) {
		return fmt.Errorf("local width %d must divide batch width %d", c.LocalWidth, c.BatchWidth)
	}
	if c.OutputSize <= 0 || c.ScratchSize <= 0 {
		return fmt.Errorf("buffer sizes must be positive (output=%d scratch=%d)", c.OutputSize, c.ScratchSize)
	}
	if c.EntryPoint == "" {
		return errors.New("kernel entry point is empty")
	}
	return nil
}

var (
	// ErrNoDevices indicates that no usable OpenCL device was found.
	ErrNoDevices = errors.New("no OpenCL devices found")
	// ErrBuild wraps kernel compilation failures.
	ErrBuild = errors.New("failed to build kernel program")
	// ErrClosed is returned by worker sets used after teardown.
	ErrClosed = errors.New("opencl resources released")
)

// BuildError carries the compiler output of a failed build.
type BuildError struct {
	Status *StatusError
	Log    string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%v: %v", ErrBuild, e.Status)
}

func (e *BuildError) Unwrap() []error {
	return []error{ErrBuild, e.Status}
}

// StatusError is a failed OpenCL call.
type StatusError struct {
	Op   string
	Code int32
}

func (e *StatusError) Error() string {
	if name, ok := statusNames[e.Code]; ok {
		return fmt.Sprintf("failed to execute %s: %s (%s, %d)", e.Op, e.Reason(), name, e.Code)
	}
	return fmt.Sprintf("failed to execute %s: %s (%d)", e.Op, e.Reason(), e.Code)
}

// Reason is a human-readable explanation of the status code.
func (e *StatusError) Reason() string {
	if r, ok := statusReasons[e.Code]; ok {
		return r
	}
	return "unknown reason"
}

// Status codes from cl.h, kept in Go so error decoding works in every build.
const (
	statusSuccess                    int32 = 0
	statusDeviceNotFound             int32 = -1
	statusDeviceNotAvailable         int32 = -2
	statusCompilerNotAvailable       int32 = -3
	statusMemObjectAllocationFailure int32 = -4
	statusOutOfResources             int32 = -5
	statusOutOfHostMemory            int32 = -6
	statusBuildProgramFailure        int32 = -11
	statusInvalidValue               int32 = -30
	statusInvalidPlatform            int32 = -32
	statusInvalidDevice              int32 = -33
	statusInvalidContext             int32 = -34
	statusInvalidQueueProperties     int32 = -35
	statusInvalidCommandQueue        int32 = -36
	statusInvalidMemObject           int32 = -38
	statusInvalidBuildOptions        int32 = -43
	statusInvalidProgram             int32 = -44
	statusInvalidProgramExecutable   int32 = -45
	statusInvalidKernelName          int32 = -46
	statusInvalidKernel              int32 = -48
	statusInvalidArgIndex            int32 = -49
	statusInvalidArgValue            int32 = -50
	statusInvalidArgSize             int32 = -51
	statusInvalidKernelArgs          int32 = -52
	statusInvalidWorkDimension       int32 = -53
	statusInvalidWorkGroupSize       int32 = -54
	statusInvalidWorkItemSize        int32 = -55
	statusInvalidGlobalOffset        int32 = -56
	statusInvalidEventWaitList       int32 = -57
	statusInvalidEvent               int32 = -58
	statusInvalidOperation           int32 = -59
	statusInvalidBufferSize          int32 = -61
)

var statusNames = map[int32]string{
	statusSuccess:                    "CL_SUCCESS",
	statusDeviceNotFound:             "CL_DEVICE_NOT_FOUND",
	statusDeviceNotAvailable:         "CL_DEVICE_NOT_AVAILABLE",
	statusCompilerNotAvailable:       "CL_COMPILER_NOT_AVAILABLE",
	statusMemObjectAllocationFailure: "CL_MEM_OBJECT_ALLOCATION_FAILURE",
	statusOutOfResources:             "CL_OUT_OF_RESOURCES",
	statusOutOfHostMemory:            "CL_OUT_OF_HOST_MEMORY",
	statusBuildProgramFailure:        "CL_BUILD_PROGRAM_FAILURE",
	statusInvalidValue:               "CL_INVALID_VALUE",
	statusInvalidPlatform:            "CL_INVALID_PLATFORM",
	statusInvalidDevice:              "CL_INVALID_DEVICE",
	statusInvalidContext:             "CL_INVALID_CONTEXT",
	statusInvalidQueueProperties:     "CL_INVALID_QUEUE_PROPERTIES",
	statusInvalidCommandQueue:        "CL_INVALID_COMMAND_QUEUE",
	statusInvalidMemObject:           "CL_INVALID_MEM_OBJECT",
	statusInvalidBuildOptions:        "CL_INVALID_BUILD_OPTIONS",
	statusInvalidProgram:             "CL_INVALID_PROGRAM",
	statusInvalidProgramExecutable:   "CL_INVALID_PROGRAM_EXECUTABLE",
	statusInvalidKernelName:          "CL_INVALID_KERNEL_NAME",
	statusInvalidKernel:              "CL_INVALID_KERNEL",
	statusInvalidArgIndex:            "CL_INVALID_ARG_INDEX",
	statusInvalidArgValue:            "CL_INVALID_ARG_VALUE",
	statusInvalidArgSize:             "CL_INVALID_ARG_SIZE",
	statusInvalidKernelArgs:          "CL_INVALID_KERNEL_ARGS",
	statusInvalidWorkDimension:       "CL_INVALID_WORK_DIMENSION",
	statusInvalidWorkGroupSize:       "CL_INVALID_WORK_GROUP_SIZE",
	statusInvalidWorkItemSize:        "CL_INVALID_WORK_ITEM_SIZE",
	statusInvalidGlobalOffset:        "CL_INVALID_GLOBAL_OFFSET",
	statusInvalidEventWaitList:       "CL_INVALID_EVENT_WAIT_LIST",
	statusInvalidEvent:               "CL_INVALID_EVENT",
	statusInvalidOperation:           "CL_INVALID_OPERATION",
	statusInvalidBufferSize:          "CL_INVALID_BUFFER_SIZE",
}

var statusReasons = map[int32]string{
	statusInvalidCommandQueue:        "command queue is not valid",
	statusInvalidContext:             "context is not valid",
	statusInvalidMemObject:           "memory object is not valid",
	statusInvalidValue:               "some value is not valid",
	statusInvalidEventWaitList:       "event wait list is not valid",
	statusMemObjectAllocationFailure: "failed to allocate memory object",
	statusOutOfResources:             "failed to allocate resources on the device",
	statusOutOfHostMemory:            "failed to allocate memory on the host",
}

// releaseStack collects teardown steps in acquisition order and runs them in reverse.
type releaseStack struct {
	fns []func()
}

func (s *releaseStack) push(fn func()) {
	s.fns = append(s.fns, fn)
}

func (s *releaseStack) unwind() {
	for i := len(s.fns) - 1; i >= 0; i-- {
		s.fns[i]()
	}
	s.fns = nil
}

func trimNull(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	if buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}
