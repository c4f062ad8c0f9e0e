// Package viewer implements the interactive model viewer loop.
package viewer

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sqweek/dialog"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/fasterobj/internal/cache"
	"github.com/Faultbox/fasterobj/internal/config"
	"github.com/Faultbox/fasterobj/internal/engine/camera"
	"github.com/Faultbox/fasterobj/internal/engine/input"
	"github.com/Faultbox/fasterobj/internal/engine/model"
	"github.com/Faultbox/fasterobj/internal/engine/renderer"
	"github.com/Faultbox/fasterobj/internal/engine/renderer/glrender"
	"github.com/Faultbox/fasterobj/internal/engine/screenshot"
	"github.com/Faultbox/fasterobj/internal/engine/window"
	"github.com/Faultbox/fasterobj/internal/logger"
)

// Options holds per-run viewer settings that are not in the config file.
type Options struct {
	Path    string
	Rebuild bool
	// Instances draws the model this many times on a spiral, for load tests.
	Instances int
}

// Viewer is the main viewer instance.
type Viewer struct {
	config   *config.Config
	opts     Options
	running  bool
	window   *window.Window
	renderer *glrender.Renderer
	backend  renderer.Backend
	input    *input.Input
	camera   *camera.OrbitCamera
	model    *model.Model
	offsets  []mgl32.Vec3
	shots    *screenshot.Capturer
	capture  bool
	showBox  bool
	box      [24][3]float32
	// Paths picked in the file dialog, consumed on the main thread.
	pending chan string
}

// New opens the window, creates the backend and loads the model.
func New(cfg *config.Config, opts Options) (*Viewer, error) {
	logger.Info("initializing viewer",
		zap.String("model", opts.Path),
		zap.String("backend", cfg.Render.Backend),
		zap.Int("width", cfg.Render.Width),
		zap.Int("height", cfg.Render.Height),
	)

	kind, err := renderer.ParseKind(cfg.Render.Backend)
	if err != nil {
		return nil, err
	}
	loadOpts, err := cfg.Loader.Options()
	if err != nil {
		return nil, err
	}

	v := &Viewer{config: cfg, opts: opts, pending: make(chan string, 1)}

	// Create window (this also creates OpenGL context)
	v.window, err = window.New(window.Config{
		Title:  title(opts.Path, kind, 0),
		Width:  cfg.Render.Width,
		Height: cfg.Render.Height,
		VSync:  cfg.Render.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Create renderer (AFTER window, since OpenGL context must exist)
	width, height := v.window.DrawableSize()
	v.renderer, err = glrender.New(glrender.Config{
		Width:    width,
		Height:   height,
		Lighting: cfg.Render.Lighting,
	})
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	v.backend, err = v.renderer.Backend(kind)
	if err != nil {
		v.Close()
		return nil, err
	}

	v.input = input.New()
	v.shots = screenshot.New(cfg.Render.ScreenshotDir, "objview")
	v.camera = camera.NewOrbitCamera(cfg.Render.FOV)

	if err := v.open(opts.Path, loadOpts); err != nil {
		v.Close()
		return nil, err
	}

	logger.Info("viewer initialized successfully")
	return v, nil
}

// open loads path, replacing the current model only on success.
func (v *Viewer) open(path string, loadOpts model.LoadOptions) error {
	start := time.Now()
	m, cached, err := cache.Open(path, cache.OpenOptions{
		Dir:      v.config.Cache.Dir,
		Compress: v.config.Cache.Compress,
		Rebuild:  v.opts.Rebuild,
		Loader:   loadOpts,
		LoadOptions: cache.LoadOptions{
			Activate:  v.config.Cache.ActivateOnLoad,
			Activator: v.backend,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	logger.Info("model ready",
		zap.String("name", m.Name),
		zap.Bool("cached", cached),
		zap.Bool("active", m.Active()),
		zap.Duration("elapsed", time.Since(start)),
	)

	if v.model != nil {
		v.model.Release()
	}
	v.model = m
	v.opts.Path = path
	v.window.SetTitle(title(path, v.backend.Kind(), 0))
	v.layout()
	return nil
}

// pick shows the file dialog without blocking the loop.
func (v *Viewer) pick() {
	go func() {
		path, err := dialog.File().
			Filter("OBJ models", "obj", "objc").
			Filter("All Files", "*").
			Title("Open Model").
			Load()
		if err != nil {
			if err != dialog.ErrCancelled {
				logger.Warn("file dialog error", zap.Error(err))
			}
			return
		}
		select {
		case v.pending <- path:
		default:
		}
	}()
}

// layout places the instances on a spiral and fits the camera around them.
func (v *Viewer) layout() {
	b := v.model.Bounds()
	v.box = b.Edges()
	n := max(v.opts.Instances, 1)
	spacing := max(b.Radius()*3, 1e-3)

	v.offsets = v.offsets[:0]
	for j := 0; j < n; j++ {
		r := math32.Sqrt(float32(j)) * spacing
		theta := float32(j) * 2.4
		v.offsets = append(v.offsets, mgl32.Vec3{r * math32.Sin(theta), 0, r * math32.Cos(theta)})
	}

	outer := math32.Sqrt(float32(n-1)) * spacing
	b.Min = [3]float32{b.Min[0] - outer, b.Min[1], b.Min[2] - outer}
	b.Max = [3]float32{b.Max[0] + outer, b.Max[1], b.Max[2] + outer}
	v.camera.FitToBounds(b)
}

// Run starts the main loop.
func (v *Viewer) Run() error {
	v.running = true

	// Timing
	frameCount := 0
	fpsTimer := time.Now()

	logger.Info("starting viewer loop")

	for v.running {
		// 1. Process input
		if v.input.Update() {
			// Quit event received
			v.running = false
			break
		}

		// 2. Handle events
		if err := v.handleEvents(); err != nil {
			return err
		}

		select {
		case path := <-v.pending:
			if err := v.reopen(path); err != nil {
				logger.Error("failed to open model", zap.String("path", path), zap.Error(err))
			}
		default:
		}

		// 3. Render
		if err := v.render(); err != nil {
			return fmt.Errorf("render error: %w", err)
		}

		if v.capture {
			v.capture = false
			v.screenshot()
		}

		// 4. Present (swap buffers)
		v.window.SwapBuffers()

		// FPS counter
		frameCount++
		if elapsed := time.Since(fpsTimer); elapsed >= time.Second {
			fps := float64(frameCount) / elapsed.Seconds()
			v.window.SetTitle(title(v.opts.Path, v.backend.Kind(), fps))
			logger.Debug("fps", zap.Float64("fps", fps), zap.Int("instances", len(v.offsets)))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	return nil
}

func (v *Viewer) handleEvents() error {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			v.renderer.Resize(v.window.DrawableSize())
		case input.EventMouseMove:
			switch event.Button {
			case sdl.BUTTON_LEFT:
				v.camera.HandleDrag(float32(event.DeltaX), float32(event.DeltaY))
			case sdl.BUTTON_MIDDLE, sdl.BUTTON_RIGHT:
				v.camera.HandlePan(float32(event.DeltaX), float32(event.DeltaY))
			}
		case input.EventMouseWheel:
			v.camera.HandleZoom(float32(event.DeltaY))
		case input.EventKeyDown:
			switch event.Key {
			case sdl.SCANCODE_ESCAPE, sdl.SCANCODE_Q:
				v.running = false
			case sdl.SCANCODE_R:
				v.layout()
			case sdl.SCANCODE_B:
				v.showBox = !v.showBox
			case sdl.SCANCODE_F12:
				v.capture = true
			case sdl.SCANCODE_O:
				v.pick()
			case sdl.SCANCODE_1:
				return v.switchBackend(renderer.KindImmediate)
			case sdl.SCANCODE_2:
				return v.switchBackend(renderer.KindIndexed)
			case sdl.SCANCODE_3:
				return v.switchBackend(renderer.KindBuffer)
			}
		}
	}
	return nil
}

func (v *Viewer) reopen(path string) error {
	loadOpts, err := v.config.Loader.Options()
	if err != nil {
		return err
	}
	return v.open(path, loadOpts)
}

// switchBackend moves the model to a backend of another kind. Its GPU state
// is released first; the geometry stays in memory.
func (v *Viewer) switchBackend(kind renderer.Kind) error {
	if v.backend.Kind() == kind {
		return nil
	}
	b, err := v.renderer.Backend(kind)
	if err != nil {
		return err
	}

	v.model.Release()
	v.backend.Close()
	v.backend = b
	if v.config.Cache.ActivateOnLoad {
		if err := v.model.Activate(b); err != nil {
			return err
		}
	}

	logger.Info("backend switched", zap.Stringer("backend", kind))
	v.window.SetTitle(title(v.opts.Path, kind, 0))
	return nil
}

// screenshot saves the frame just rendered. Failures are logged only.
func (v *Viewer) screenshot() {
	pixels, w, h := v.renderer.ReadPixels()
	path, err := v.shots.Save(pixels, w, h)
	if err != nil {
		logger.Warn("screenshot failed", zap.Error(err))
		return
	}
	logger.Info("screenshot saved", zap.String("path", path))
}

// render draws the current frame.
func (v *Viewer) render() error {
	// Begin frame
	v.renderer.Begin(v.camera.ProjectionMatrix(v.renderer.Aspect()), v.camera.ViewMatrix())

	for _, offset := range v.offsets {
		if err := v.renderer.DrawAt(offset, func() error {
			if v.showBox {
				v.renderer.DrawLines(v.box[:], [3]float32{1, 0.8, 0.2})
			}
			return v.backend.Draw(v.model)
		}); err != nil {
			return err
		}
	}

	// End frame
	v.renderer.End()

	return nil
}

// Close releases the model, the backend and the window.
func (v *Viewer) Close() {
	logger.Info("closing viewer")

	if v.model != nil {
		v.model.Release()
	}
	if v.backend != nil {
		v.backend.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}

func title(path string, kind renderer.Kind, fps float64) string {
	if fps == 0 {
		return fmt.Sprintf("objview - %s [%s]", path, kind)
	}
	return fmt.Sprintf("objview - %s [%s] %.1f fps", path, kind, fps)
}
