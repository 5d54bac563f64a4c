//go:build gpu

package opencl

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
#include <stdio.h>
#include <stdlib.h>

static void CL_CALLBACK scryptbench_notify(const char *errinfo, const void *private_info, size_t cb, void *user_data) {
	(void)private_info; (void)cb; (void)user_data;
	fprintf(stderr, "W: caught an error in context notify callback:\nW:   %s\n", errinfo);
}

static cl_context scryptbench_create_context(cl_device_id device, cl_int *status) {
	return clCreateContext(NULL, 1, &device, scryptbench_notify, NULL, status);
}

static cl_command_queue scryptbench_create_queue(cl_context ctx, cl_device_id device, cl_int *status) {
	return clCreateCommandQueue(ctx, device, CL_QUEUE_OUT_OF_ORDER_EXEC_MODE_ENABLE, status);
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"unsafe"
)

// Manager owns the shared context and program plus one WorkerSet per worker.
type Manager struct {
	platform C.cl_platform_id
	device   C.cl_device_id
	context  C.cl_context
	program  C.cl_program

	Platform PlatformInfo
	Device   DeviceInfo
	BuildLog string

	sets     []*WorkerSet
	releases releaseStack
}

// WorkerSet is the queue, kernel instance and buffer pair owned by one worker.
// It must only be used from that worker's goroutine.
type WorkerSet struct {
	ID int

	queue   C.cl_command_queue
	kernel  C.cl_kernel
	output  C.cl_mem
	scratch C.cl_mem
	event   C.cl_event
	pending bool

	global     C.size_t
	local      C.size_t
	outputSize int
	closed     bool
}

// Init selects the first GPU of the first platform, builds source and creates
// cfg.Workers independent resource sets. On any failure the handles acquired so far
// are released in reverse order before the error is returned. A *BuildError carries
// the compiler log; m.BuildLog holds it after a successful build.
func Init(source []byte, cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(source) == 0 {
		return nil, fmt.Errorf("%w: empty kernel source", ErrBuild)
	}

	m := &Manager{}
	steps := []func() error{
		m.selectDevice,
		m.createContext,
		func() error { return m.buildProgram(source, cfg.Options) },
	}
	for i := 0; i < cfg.Workers; i++ {
		id := i
		steps = append(steps, func() error { return m.createWorkerSet(id, cfg) })
	}

	for _, step := range steps {
		if err := step(); err != nil {
			m.releases.unwind()
			return nil, err
		}
	}

	slog.Info("OpenCL backend initialised",
		"platform", m.Platform.Name,
		"device", m.Device.Name,
		"vendor", m.Device.Vendor,
		"compute_units", m.Device.MaxComputeUnits,
		"workers", len(m.sets),
	)
	return m, nil
}

// Sets returns the per-worker resource sets in worker order.
func (m *Manager) Sets() []*WorkerSet {
	return m.sets
}

// Close releases every worker set, then the program and the context.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.releases.unwind()
	m.sets = nil
}

func (m *Manager) selectDevice() error {
	status := C.clGetPlatformIDs(1, &m.platform, nil)
	if status != C.CL_SUCCESS {
		return statusError("clGetPlatformIDs", status)
	}

	status = C.clGetDeviceIDs(m.platform, C.CL_DEVICE_TYPE_GPU, 1, &m.device, nil)
	if status == C.CL_DEVICE_NOT_FOUND {
		return fmt.Errorf("%w: %v", ErrNoDevices, statusError("clGetDeviceIDs", status))
	}
	if status != C.CL_SUCCESS {
		return statusError("clGetDeviceIDs", status)
	}

	var err error
	if m.Platform, err = buildPlatformInfo(m.platform); err != nil {
		return err
	}
	if m.Device, err = buildDeviceInfo(m.device); err != nil {
		return err
	}
	return nil
}

func (m *Manager) createContext() error {
	var status C.cl_int
	m.context = C.scryptbench_create_context(m.device, &status)
	if status != C.CL_SUCCESS {
		return statusError("clCreateContext", status)
	}
	m.releases.push(func() {
		C.clReleaseContext(m.context)
		m.context = nil
	})
	return nil
}

func (m *Manager) buildProgram(source []byte, options string) error {
	src := (*C.char)(C.CBytes(source))
	defer C.free(unsafe.Pointer(src))
	length := C.size_t(len(source))

	var status C.cl_int
	m.program = C.clCreateProgramWithSource(m.context, 1, &src, &length, &status)
	if status != C.CL_SUCCESS {
		return statusError("clCreateProgramWithSource", status)
	}
	m.releases.push(func() {
		C.clReleaseProgram(m.program)
		m.program = nil
	})

	opts := C.CString(options)
	defer C.free(unsafe.Pointer(opts))

	status = C.clBuildProgram(m.program, 1, &m.device, opts, nil, nil)
	m.BuildLog = m.buildLog()
	if status != C.CL_SUCCESS {
		return &BuildError{Status: statusError("clBuildProgram", status), Log: m.BuildLog}
	}
	return nil
}

func (m *Manager) buildLog() string {
	var size C.size_t
	if status := C.clGetProgramBuildInfo(m.program, m.device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size); status != C.CL_SUCCESS {
		slog.Error("OpenCL: failed to fetch build log size", "err", statusError("clGetProgramBuildInfo", status))
		return ""
	}
	if size == 0 {
		return ""
	}

	buf := make([]byte, int(size))
	if status := C.clGetProgramBuildInfo(m.program, m.device, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		slog.Error("OpenCL: failed to fetch build log", "err", statusError("clGetProgramBuildInfo", status))
		return ""
	}
	return trimNull(buf)
}

func (m *Manager) createWorkerSet(id int, cfg Config) error {
	w := &WorkerSet{
		ID:         id,
		global:     C.size_t(cfg.BatchWidth),
		local:      C.size_t(cfg.LocalWidth),
		outputSize: cfg.OutputSize,
	}

	var status C.cl_int
	w.queue = C.scryptbench_create_queue(m.context, m.device, &status)
	if status != C.CL_SUCCESS {
		return statusError("clCreateCommandQueue", status)
	}
	m.releases.push(func() {
		C.clReleaseCommandQueue(w.queue)
		w.queue = nil
		w.closed = true
	})

	name := C.CString(cfg.EntryPoint)
	defer C.free(unsafe.Pointer(name))
	w.kernel = C.clCreateKernel(m.program, name, &status)
	if status != C.CL_SUCCESS {
		return statusError("clCreateKernel", status)
	}
	m.releases.push(func() {
		C.clReleaseKernel(w.kernel)
		w.kernel = nil
	})

	w.output = C.clCreateBuffer(m.context, C.CL_MEM_WRITE_ONLY|C.CL_MEM_HOST_READ_ONLY, C.size_t(cfg.OutputSize), nil, &status)
	if status != C.CL_SUCCESS {
		return statusError("clCreateBuffer(output)", status)
	}
	m.releases.push(func() {
		C.clReleaseMemObject(w.output)
		w.output = nil
	})

	w.scratch = C.clCreateBuffer(m.context, C.CL_MEM_READ_WRITE|C.CL_MEM_HOST_NO_ACCESS, C.size_t(cfg.ScratchSize), nil, &status)
	if status != C.CL_SUCCESS {
		return statusError("clCreateBuffer(scratch)", status)
	}
	m.releases.push(func() {
		C.clReleaseMemObject(w.scratch)
		w.scratch = nil
	})

	status = C.clSetKernelArg(w.kernel, 0, C.size_t(unsafe.Sizeof(w.output)), unsafe.Pointer(&w.output))
	if status != C.CL_SUCCESS {
		return statusError("clSetKernelArg(output)", status)
	}
	status = C.clSetKernelArg(w.kernel, 1, C.size_t(unsafe.Sizeof(w.scratch)), unsafe.Pointer(&w.scratch))
	if status != C.CL_SUCCESS {
		return statusError("clSetKernelArg(scratch)", status)
	}

	m.releases.push(w.releaseEvent)
	m.sets = append(m.sets, w)
	return nil
}

// Dispatch enqueues one NDRange covering the whole batch starting at offset.
func (w *WorkerSet) Dispatch(offset uint64) error {
	if w.closed {
		return ErrClosed
	}
	w.releaseEvent()

	off := C.size_t(offset)
	global := w.global
	local := w.local
	localPtr := &local
	if local == 0 {
		localPtr = nil
	}

	status := C.clEnqueueNDRangeKernel(w.queue, w.kernel, 1, &off, &global, localPtr, 0, nil, &w.event)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueNDRangeKernel", status)
	}
	w.pending = true
	return nil
}

// ReadOutput blocks until the last dispatch finished and copies the output buffer into dst.
func (w *WorkerSet) ReadOutput(dst []byte) error {
	if w.closed {
		return ErrClosed
	}
	if len(dst) < w.outputSize {
		return fmt.Errorf("output buffer too small: %d < %d", len(dst), w.outputSize)
	}

	var waitCount C.cl_uint
	var waitList *C.cl_event
	if w.pending {
		waitCount = 1
		waitList = &w.event
	}

	status := C.clEnqueueReadBuffer(w.queue, w.output, C.CL_TRUE, 0, C.size_t(w.outputSize), unsafe.Pointer(&dst[0]), waitCount, waitList, nil)
	w.releaseEvent()
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueReadBuffer", status)
	}
	return nil
}

func (w *WorkerSet) releaseEvent() {
	if w.pending {
		C.clReleaseEvent(w.event)
		w.event = nil
		w.pending = false
	}
}

func buildPlatformInfo(id C.cl_platform_id) (PlatformInfo, error) {
	name, err := getPlatformString(id, C.CL_PLATFORM_NAME)
	if err != nil {
		return PlatformInfo{}, err
	}
	vendor, err := getPlatformString(id, C.CL_PLATFORM_VENDOR)
	if err != nil {
		return PlatformInfo{}, err
	}
	version, err := getPlatformString(id, C.CL_PLATFORM_VERSION)
	if err != nil {
		return PlatformInfo{}, err
	}
	return PlatformInfo{Name: name, Vendor: vendor, Version: version}, nil
}

func buildDeviceInfo(id C.cl_device_id) (DeviceInfo, error) {
	name, err := getDeviceString(id, C.CL_DEVICE_NAME)
	if err != nil {
		return DeviceInfo{}, err
	}
	vendor, err := getDeviceString(id, C.CL_DEVICE_VENDOR)
	if err != nil {
		return DeviceInfo{}, err
	}
	version, err := getDeviceString(id, C.CL_DEVICE_VERSION)
	if err != nil {
		return DeviceInfo{}, err
	}

	var rawType C.cl_device_type
	status := C.clGetDeviceInfo(id, C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(rawType)), unsafe.Pointer(&rawType), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(type)", status)
	}

	var computeUnits C.cl_uint
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(computeUnits)), unsafe.Pointer(&computeUnits), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(computeUnits)", status)
	}

	return DeviceInfo{
		Name:            name,
		Vendor:          vendor,
		Version:         version,
		Type:            mapDeviceType(rawType),
		MaxComputeUnits: uint32(computeUnits),
	}, nil
}

func getPlatformString(id C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	status := C.clGetPlatformInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(value)", status)
	}
	return trimNull(buf), nil
}

func getDeviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	status := C.clGetDeviceInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(value)", status)
	}
	return trimNull(buf), nil
}

func mapDeviceType(dt C.cl_device_type) DeviceType {
	switch {
	case dt&C.CL_DEVICE_TYPE_GPU != 0:
		return DeviceTypeGPU
	case dt&C.CL_DEVICE_TYPE_CPU != 0:
		return DeviceTypeCPU
	case dt&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		return DeviceTypeAccelerator
	case dt&C.CL_DEVICE_TYPE_DEFAULT != 0:
		return DeviceTypeDefault
	default:
		return DeviceTypeUnknown
	}
}

func statusError(op string, status C.cl_int) *StatusError {
	return &StatusError{Op: op, Code: int32(status)}
}
