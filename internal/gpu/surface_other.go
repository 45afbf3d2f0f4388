//go:build !darwin && !linux

package gpu

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/rajveermalviya/go-webgpu/wgpu"
)

const instanceBackends = wgpu.InstanceBackend_Primary

func createSurface(_ *wgpu.Instance, _ *glfw.Window) (*wgpu.Surface, error) {
	return nil, fmt.Errorf("no window surface support on %s", runtime.GOOS)
}
