// Package gpu owns the WebGPU objects shared by every pass: instance,
// surface, adapter, device and queue. They are created together by New
// and released together by Release.
package gpu

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/rajveermalviya/go-webgpu/wgpu"

	"isosandbox/internal/logging"
)

// Context is the explicitly owned GPU state of the process
type Context struct {
	Instance *wgpu.Instance
	Surface  *wgpu.Surface
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
}

// New creates the GPU context for a window. Any failure releases what was
// already created and returns a wrapped error.
func New(window *glfw.Window) (*Context, error) {
	c := &Context{}

	c.Instance = wgpu.CreateInstance(&wgpu.InstanceDescriptor{
		Backends: instanceBackends,
	})
	if c.Instance == nil {
		return nil, fmt.Errorf("failed to create WebGPU instance")
	}

	var err error
	c.Surface, err = createSurface(c.Instance, window)
	if err != nil {
		c.Release()
		return nil, fmt.Errorf("surface creation failed: %w", err)
	}

	// Request adapter - try with surface first, then without
	c.Adapter, err = c.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: c.Surface,
		PowerPreference:   wgpu.PowerPreference_HighPerformance,
	})
	if err != nil {
		logging.Logger().Warn("adapter request with surface failed, retrying without", "err", err)
		c.Adapter, err = c.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreference_HighPerformance,
		})
		if err != nil {
			c.Release()
			return nil, fmt.Errorf("adapter request failed: %w", err)
		}
	}

	props := c.Adapter.GetProperties()
	logging.Logger().Info("gpu adapter", "name", props.Name, "driver", props.DriverDescription)

	c.Device, err = c.Adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "IsoSandboxDevice",
	})
	if err != nil {
		c.Release()
		return nil, fmt.Errorf("device request failed: %w", err)
	}

	c.Queue = c.Device.GetQueue()
	return c, nil
}

// CreateShader validates source and builds a shader module. Validation
// problems are logged; the device compiler has the final word.
func (c *Context) CreateShader(label, source string) (*wgpu.ShaderModule, error) {
	if err := ValidateWGSL(source); err != nil {
		logging.Logger().Warn("wgsl validation", "shader", label, "err", err)
	}
	module, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, fmt.Errorf("shader %s creation failed: %w", label, err)
	}
	return module, nil
}

// Release frees the context in reverse creation order. It is safe on a
// partially built context.
func (c *Context) Release() {
	if c.Queue != nil {
		c.Queue.Release()
		c.Queue = nil
	}
	if c.Device != nil {
		c.Device.Release()
		c.Device = nil
	}
	if c.Adapter != nil {
		c.Adapter.Release()
		c.Adapter = nil
	}
	if c.Surface != nil {
		c.Surface.Release()
		c.Surface = nil
	}
	if c.Instance != nil {
		c.Instance.Release()
		c.Instance = nil
	}
}
