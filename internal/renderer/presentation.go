package renderer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rajveermalviya/go-webgpu/wgpu"

	"isosandbox/internal/logging"
)

// ErrSurfaceStale marks acquisition failures that resolve themselves once
// the swap chain is reconfigured or the window is visible again
var ErrSurfaceStale = errors.New("surface is stale")

// DepthFormat is the format of the depth attachment that follows the swap chain size
const DepthFormat = wgpu.TextureFormat_Depth32Float

// swapChainConfigurer rebuilds everything sized to the window
type swapChainConfigurer interface {
	Configure(width, height uint32) error
}

// Presentation tracks the window size and reconfigures the swap chain when
// it changes. Zero-area sizes (a minimised window) are ignored.
type Presentation struct {
	target       swapChainConfigurer
	width        uint32
	height       uint32
	reconfigures int
}

func newPresentation(target swapChainConfigurer, width, height uint32) *Presentation {
	return &Presentation{target: target, width: width, height: height}
}

// Size returns the configured size
func (p *Presentation) Size() (uint32, uint32) {
	return p.width, p.height
}

// Reconfigures counts swap chain rebuilds after the initial one
func (p *Presentation) Reconfigures() int {
	return p.reconfigures
}

// Resize reconfigures the swap chain for a new framebuffer size. It reports
// whether anything was rebuilt.
func (p *Presentation) Resize(width, height int) (bool, error) {
	if width <= 0 || height <= 0 {
		return false, nil
	}
	w, h := uint32(width), uint32(height)
	if w == p.width && h == p.height {
		return false, nil
	}
	if err := p.target.Configure(w, h); err != nil {
		return false, fmt.Errorf("swap chain reconfigure %dx%d failed: %w", w, h, err)
	}
	p.width, p.height = w, h
	p.reconfigures++
	return true, nil
}

// classifyAcquireError wraps transient acquisition failures in ErrSurfaceStale
func classifyAcquireError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, transient := range []string{"outdated", "lost", "timeout", "suboptimal"} {
		if strings.Contains(msg, transient) {
			return fmt.Errorf("%w: %v", ErrSurfaceStale, err)
		}
	}
	return err
}

// surfaceTarget owns the swap chain and the depth attachment
type surfaceTarget struct {
	device      *wgpu.Device
	surface     *wgpu.Surface
	format      wgpu.TextureFormat
	presentMode wgpu.PresentMode

	swapChain *wgpu.SwapChain
	depth     *wgpu.Texture
	depthView *wgpu.TextureView
}

func presentMode(vsync bool) wgpu.PresentMode {
	if vsync {
		return wgpu.PresentMode_Fifo
	}
	return wgpu.PresentMode_Immediate
}

func (s *surfaceTarget) Configure(width, height uint32) error {
	s.releaseSized()

	var err error
	s.swapChain, err = s.device.CreateSwapChain(s.surface, &wgpu.SwapChainDescriptor{
		Usage:       wgpu.TextureUsage_RenderAttachment,
		Format:      s.format,
		Width:       width,
		Height:      height,
		PresentMode: s.presentMode,
	})
	if err != nil && s.presentMode != wgpu.PresentMode_Fifo {
		logging.Logger().Warn("present mode unsupported, falling back to fifo", "err", err)
		s.presentMode = wgpu.PresentMode_Fifo
		s.swapChain, err = s.device.CreateSwapChain(s.surface, &wgpu.SwapChainDescriptor{
			Usage:       wgpu.TextureUsage_RenderAttachment,
			Format:      s.format,
			Width:       width,
			Height:      height,
			PresentMode: s.presentMode,
		})
	}
	if err != nil {
		return fmt.Errorf("swap chain creation failed: %w", err)
	}

	s.depth, err = s.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "depth_texture",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension_2D,
		Format:        DepthFormat,
		Usage:         wgpu.TextureUsage_RenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("depth texture creation failed: %w", err)
	}
	s.depthView, err = s.depth.CreateView(nil)
	if err != nil {
		return fmt.Errorf("depth view creation failed: %w", err)
	}
	return nil
}

// Acquire returns the next swap chain image
func (s *surfaceTarget) Acquire() (*wgpu.TextureView, error) {
	if s.swapChain == nil {
		return nil, ErrSurfaceStale
	}
	view, err := s.swapChain.GetCurrentTextureView()
	if err != nil {
		return nil, classifyAcquireError(err)
	}
	return view, nil
}

func (s *surfaceTarget) Present() {
	s.swapChain.Present()
}

func (s *surfaceTarget) releaseSized() {
	if s.depthView != nil {
		s.depthView.Release()
		s.depthView = nil
	}
	if s.depth != nil {
		s.depth.Release()
		s.depth = nil
	}
	if s.swapChain != nil {
		s.swapChain.Release()
		s.swapChain = nil
	}
}

func (s *surfaceTarget) Release() {
	s.releaseSized()
}
