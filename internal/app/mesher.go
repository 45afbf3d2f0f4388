package app

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"isosandbox/internal/density"
	"isosandbox/internal/logging"
	"isosandbox/internal/mc"
	"isosandbox/pkg/grid"
)

// MeshJob asks for the surface of one field configuration
type MeshJob struct {
	Field  density.Field
	Params density.Params
	Iso    float32
}

// MeshResult is a finished CPU extraction. Mesh is owned by the receiver.
type MeshResult struct {
	Job     MeshJob
	Mesh    *mc.Mesh
	Err     error
	Elapsed time.Duration
}

// Mesher runs density generation and extraction off the render thread.
// Requests and results are latest-wins: a pending entry is replaced by a
// newer one, so a slow extraction never queues up stale work.
type Mesher struct {
	extent  grid.Extent
	workers int

	queue   chan MeshJob
	results chan MeshResult
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	closed   bool
	closedMu sync.Mutex

	// worker-owned
	volume     *density.Volume
	extractor  *mc.Extractor
	generators map[string]*density.Generator
}

// NewMesher allocates the CPU volume and extractor and starts the worker
func NewMesher(extent grid.Extent, workers int) (*Mesher, error) {
	vol, err := density.NewVolume(extent)
	if err != nil {
		return nil, fmt.Errorf("mesher volume: %w", err)
	}
	ex, err := mc.NewExtractor(extent)
	if err != nil {
		return nil, fmt.Errorf("mesher extractor: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Mesher{
		extent:     extent,
		workers:    workers,
		queue:      make(chan MeshJob, 1),
		results:    make(chan MeshResult, 1),
		ctx:        ctx,
		cancel:     cancel,
		volume:     vol,
		extractor:  ex,
		generators: make(map[string]*density.Generator),
	}

	m.wg.Add(1)
	go m.worker()
	return m, nil
}

func (m *Mesher) worker() {
	defer m.wg.Done()
	for job := range m.queue {
		res := m.run(job)
		if m.ctx.Err() != nil {
			return
		}
		replace(m.results, res)
	}
}

func (m *Mesher) run(job MeshJob) MeshResult {
	start := time.Now()
	res := MeshResult{Job: job}

	gen, err := m.generator(job.Field)
	if err != nil {
		res.Err = err
		return res
	}
	if err := gen.Generate(m.ctx, m.volume, job.Params); err != nil {
		res.Err = fmt.Errorf("density generation failed: %w", err)
		return res
	}
	mesh, err := m.extractor.Extract(m.volume, job.Iso)
	if err != nil {
		res.Err = err
		return res
	}

	// The extractor reuses its mesh on the next call
	res.Mesh = &mc.Mesh{
		Vertices: slices.Clone(mesh.Vertices),
		Indices:  slices.Clone(mesh.Indices),
	}
	res.Elapsed = time.Since(start)
	logging.Logger().Debug("cpu extraction",
		"field", gen.Name(),
		"triangles", res.Mesh.TriangleCount(),
		"elapsed", res.Elapsed)
	return res
}

func (m *Mesher) generator(f density.Field) (*density.Generator, error) {
	if f == nil {
		return nil, fmt.Errorf("mesher job has no field")
	}
	if g, ok := m.generators[f.Name()]; ok {
		return g, nil
	}
	g, err := density.NewGenerator(m.extent, f)
	if err != nil {
		return nil, err
	}
	g.SetWorkers(m.workers)
	m.generators[f.Name()] = g
	return g, nil
}

// replace sends v without blocking, discarding a pending value first.
// It must only be called by the channel's single sender.
func replace[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Request queues a job, replacing any job the worker has not started.
// It reports false once the mesher is closed.
func (m *Mesher) Request(job MeshJob) bool {
	m.closedMu.Lock()
	defer m.closedMu.Unlock()
	if m.closed {
		return false
	}
	replace(m.queue, job)
	return true
}

// Poll returns the newest finished result, if any
func (m *Mesher) Poll() (MeshResult, bool) {
	select {
	case res := <-m.results:
		return res, true
	default:
		return MeshResult{}, false
	}
}

// Close cancels the running job and waits for the worker to exit
func (m *Mesher) Close() {
	m.closedMu.Lock()
	if m.closed {
		m.closedMu.Unlock()
		return
	}
	m.closed = true
	m.cancel()
	close(m.queue)
	m.closedMu.Unlock()
	m.wg.Wait()
}
