// Package app owns the window and runs the per-frame control flow:
// input, overlay, density and extraction, draw and present.
package app

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"isosandbox/internal/camera"
	"isosandbox/internal/config"
	"isosandbox/internal/density"
	"isosandbox/internal/gpu"
	"isosandbox/internal/inspect"
	"isosandbox/internal/logging"
	"isosandbox/internal/mc"
	"isosandbox/internal/overlay"
	"isosandbox/internal/renderer"
)

const (
	// KeyRotateSpeed is the orbit step in drag pixels per frame for held arrow keys
	KeyRotateSpeed = 4.0

	// Sleep granularity while minimised
	idleWait = 0.05
)

type App struct {
	cfg    *config.Config
	window *glfw.Window
	gpu    *gpu.Context

	renderer *renderer.Renderer
	overlay  *overlay.Overlay
	camera   *camera.Camera
	mesher   *Mesher
	inspect  *inspect.Server

	params  overlay.Params
	fields  map[string]density.Field
	cpuMesh *mc.Mesh
	fps     float64
	start   time.Time

	keys   map[glfw.Key]bool
	keysMu sync.RWMutex

	fbWidth, fbHeight int
	minimised         bool
}

// New opens the window and creates every GPU resource. Failures release
// whatever was created and return a wrapped error.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("GLFW init failed: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.CocoaRetinaFramebuffer, glfw.True)

	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("window creation failed: %w", err)
	}

	app := &App{
		cfg:    cfg,
		window: window,
		params: overlay.ParamsFromConfig(cfg),
		fields: make(map[string]density.Field),
		keys:   make(map[glfw.Key]bool),
		start:  time.Now(),
	}
	if err := app.init(); err != nil {
		app.Cleanup()
		return nil, err
	}
	return app, nil
}

func (app *App) init() error {
	var err error
	app.gpu, err = gpu.New(app.window)
	if err != nil {
		return fmt.Errorf("GPU init failed: %w", err)
	}

	app.fbWidth, app.fbHeight = app.window.GetFramebufferSize()
	extent := app.cfg.Extent()

	app.renderer, err = renderer.New(app.gpu, extent, app.fbWidth, app.fbHeight, app.cfg.Window.VSync)
	if err != nil {
		return fmt.Errorf("renderer creation failed: %w", err)
	}

	app.overlay, err = overlay.New(app.gpu, app.renderer.Format(), app.cfg.Features.ShowOverlay)
	if err != nil {
		return fmt.Errorf("overlay creation failed: %w", err)
	}

	app.mesher, err = NewMesher(extent, app.cfg.WorkerCount())
	if err != nil {
		return fmt.Errorf("mesher creation failed: %w", err)
	}

	app.camera = camera.NewCamera(app.fbWidth, app.fbHeight)
	app.camera.AutoRotate = app.params.AutoRotate

	if app.cfg.Inspect.Enabled {
		app.inspect = inspect.NewServer(app.cfg.Inspect.Addr)
		go func(s *inspect.Server) {
			if err := s.Start(); err != nil {
				logging.Logger().Error("inspect server stopped", "err", err)
			}
		}(app.inspect)
	}

	app.setupCallbacks()
	return nil
}

// cursorScale converts window coordinates to framebuffer pixels
func cursorScale(winW, winH, fbW, fbH int) (float64, float64) {
	if winW <= 0 || winH <= 0 || fbW <= 0 || fbH <= 0 {
		return 1, 1
	}
	return float64(fbW) / float64(winW), float64(fbH) / float64(winH)
}

func (app *App) framebufferCursor(w *glfw.Window, x, y float64) (float64, float64) {
	winW, winH := w.GetSize()
	sx, sy := cursorScale(winW, winH, app.fbWidth, app.fbHeight)
	return x * sx, y * sy
}

func (app *App) setupCallbacks() {
	app.window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		app.fbWidth = width
		app.fbHeight = height
		app.camera.SetViewport(width, height)
		if err := app.renderer.Resize(width, height); err != nil {
			logging.Logger().Error("resize failed", "width", width, "height", height, "err", err)
		}
	})

	app.window.SetIconifyCallback(func(w *glfw.Window, iconified bool) {
		app.minimised = iconified
	})

	app.window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		x, y := w.GetCursorPos()
		in := app.overlay.Input()
		if action == glfw.Press {
			in.Press()
			if !app.overlay.WantsMouse() {
				app.camera.StartDrag(x, y)
			}
		} else if action == glfw.Release {
			in.Release()
			app.camera.EndDrag()
		}
	})

	app.window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		app.overlay.Input().MoveTo(app.framebufferCursor(w, x, y))
		if app.camera.IsDragging() {
			app.camera.Drag(x, y)
		}
	})

	app.window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		if app.overlay.WantsMouse() {
			return
		}
		app.camera.Zoom(yoff)
	})

	app.window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		app.keysMu.Lock()
		if action == glfw.Press {
			app.keys[key] = true
		} else if action == glfw.Release {
			app.keys[key] = false
		}
		app.keysMu.Unlock()

		// Handle single-press actions (not held)
		if action == glfw.Press {
			switch key {
			case glfw.KeyEscape:
				w.SetShouldClose(true)
			case glfw.KeyF1:
				app.overlay.Toggle()
			case glfw.KeyTab:
				app.params.CPU = !app.params.CPU
				logging.Logger().Info("extraction backend", "backend", app.params.Backend())
			case glfw.KeyR:
				app.camera.Reset()
			}
		}
	})
}

func (app *App) processInput() {
	app.keysMu.RLock()
	defer app.keysMu.RUnlock()

	dx, dy := 0.0, 0.0
	if app.keys[glfw.KeyLeft] || app.keys[glfw.KeyA] {
		dx -= KeyRotateSpeed
	}
	if app.keys[glfw.KeyRight] || app.keys[glfw.KeyD] {
		dx += KeyRotateSpeed
	}
	if app.keys[glfw.KeyUp] || app.keys[glfw.KeyW] {
		dy -= KeyRotateSpeed
	}
	if app.keys[glfw.KeyDown] || app.keys[glfw.KeyS] {
		dy += KeyRotateSpeed
	}
	if dx != 0 || dy != 0 {
		app.camera.Rotate(dx, dy)
	}
}

// skipFrame reports whether nothing should be computed, drawn or presented
func (app *App) skipFrame() bool {
	return app.window.ShouldClose() || app.minimised || app.fbWidth <= 0 || app.fbHeight <= 0
}

func (app *App) field(name string) (density.Field, error) {
	if f, ok := app.fields[name]; ok {
		return f, nil
	}
	f, err := density.Lookup(name)
	if err != nil {
		return nil, err
	}
	app.fields[name] = f
	return f, nil
}

func (app *App) status() overlay.Status {
	st := app.renderer.Stats()
	return overlay.Status{
		FPS:       app.fps,
		Triangles: st.Triangles,
		Capacity:  st.Capacity,
		Grid:      app.cfg.Extent().String(),
	}
}

// cpuFrame requests an extraction for the current parameters and returns the
// newest finished mesh. Capacity violations are fatal.
func (app *App) cpuFrame(job MeshJob) (*mc.Mesh, error) {
	app.mesher.Request(job)
	if res, ok := app.mesher.Poll(); ok {
		if res.Err != nil {
			if errors.Is(res.Err, mc.ErrCapacityExceeded) {
				return nil, res.Err
			}
			logging.Logger().Warn("cpu extraction failed", "err", res.Err)
		} else {
			app.cpuMesh = res.Mesh
		}
	}
	if app.cpuMesh == nil {
		return &mc.Mesh{}, nil
	}
	return app.cpuMesh, nil
}

// frame runs one iteration of the control flow. Only fatal errors are returned.
func (app *App) frame(dt float32) error {
	app.processInput()

	changed, err := app.overlay.Update(&app.params, app.status(), app.fbWidth, app.fbHeight)
	if err != nil {
		logging.Logger().Warn("overlay update failed", "err", err)
	}
	if changed {
		logging.Logger().Debug("parameters changed",
			"field", app.params.Field,
			"radius", app.params.Radius,
			"offset", app.params.Offset,
			"threshold", app.params.Threshold,
			"backend", app.params.Backend())
	}

	app.camera.AutoRotate = app.params.AutoRotate
	app.camera.Update(dt)

	field, err := app.field(app.params.Field)
	if err != nil {
		return err
	}
	in := renderer.FrameInput{
		Transform: app.camera.Transform(),
		Field:     field,
		Params:    app.params.Density(float32(time.Since(app.start).Seconds())),
		Iso:       app.params.Threshold,
	}
	if app.overlay.Visible {
		in.Overlay = app.overlay
	}
	if app.params.CPU {
		in.Mesh, err = app.cpuFrame(MeshJob{Field: field, Params: in.Params, Iso: in.Iso})
		if err != nil {
			return err
		}
	}

	err = app.renderer.Frame(in)
	switch {
	case err == nil:
	case errors.Is(err, renderer.ErrSurfaceStale):
		logging.Logger().Debug("frame skipped", "err", err)
	case errors.Is(err, mc.ErrCapacityExceeded):
		return err
	default:
		logging.Logger().Warn("frame skipped", "err", err)
	}
	return nil
}

// Title formats the window title from the last second of frames
func Title(base string, st renderer.Stats, fps int) string {
	return fmt.Sprintf("%s | %s | Triangles: %d | FPS: %d", base, st.Backend, st.Triangles, fps)
}

func (app *App) publish() {
	if app.inspect == nil {
		return
	}
	app.inspect.Publish(inspect.Snapshot{
		Stats: app.renderer.Stats(),
		FPS:   app.fps,
		Field: app.params.Field,
		Grid:  app.cfg.Extent().String(),
		Time:  time.Now(),
	})
}

// Run drives the frame loop until the window closes or a fatal error occurs
func (app *App) Run() error {
	lastTime := time.Now()
	lastFrame := lastTime
	frames := 0

	for !app.window.ShouldClose() {
		glfw.PollEvents()
		if app.skipFrame() {
			glfw.WaitEventsTimeout(idleWait)
			lastFrame = time.Now()
			continue
		}

		now := time.Now()
		dt := float32(now.Sub(lastFrame).Seconds())
		lastFrame = now

		if err := app.frame(dt); err != nil {
			logging.Logger().Error("fatal frame error", "err", err)
			return err
		}

		frames++
		if elapsed := time.Since(lastTime); elapsed >= time.Second {
			app.fps = float64(frames) / elapsed.Seconds()
			app.window.SetTitle(Title(app.cfg.Window.Title, app.renderer.Stats(), frames))
			app.publish()
			frames = 0
			lastTime = time.Now()
		}
	}

	return nil
}

// Cleanup releases everything in reverse creation order
func (app *App) Cleanup() {
	if app.inspect != nil {
		if err := app.inspect.Stop(); err != nil {
			logging.Logger().Warn("inspect server stop failed", "err", err)
		}
		app.inspect = nil
	}
	if app.mesher != nil {
		app.mesher.Close()
		app.mesher = nil
	}
	if app.overlay != nil {
		app.overlay.Release()
		app.overlay = nil
	}
	if app.renderer != nil {
		app.renderer.Release()
		app.renderer = nil
	}
	if app.gpu != nil {
		app.gpu.Release()
		app.gpu = nil
	}
	if app.window != nil {
		app.window.Destroy()
		app.window = nil
	}
	glfw.Terminate()
}
