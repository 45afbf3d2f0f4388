// Command meshdump evaluates a density field on the CPU, extracts its
// iso-surface and prints mesh statistics. It needs no window or GPU.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"isosandbox/internal/config"
	"isosandbox/internal/density"
	"isosandbox/internal/logging"
	"isosandbox/internal/mc"
	"isosandbox/pkg/grid"
)

func main() {
	logging.SetLogger(logging.NewTextLogger(os.Stderr, "warn"))
	cfg := config.Snapshot()

	field := flag.String("field", cfg.Field.Kind, "density field ("+strings.Join(density.Names(), ", ")+")")
	size := flag.Int("grid", 0, "samples per axis (0 keeps the configured grid)")
	radius := flag.Float64("radius", cfg.Field.Radius, "field radius")
	offset := flag.Float64("offset", cfg.Field.Offset, "density offset")
	frequency := flag.Float64("frequency", cfg.Field.Frequency, "field frequency")
	threshold := flag.Float64("threshold", cfg.Extract.Threshold, "iso threshold")
	workers := flag.Int("workers", cfg.WorkerCount(), "density goroutines")
	flag.Parse()

	extent, err := extentFor(&cfg, *size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(*field, extent, density.Params{
		Radius:    float32(*radius),
		Offset:    float32(*offset),
		Frequency: float32(*frequency),
	}, float32(*threshold), *workers); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// extentFor returns the configured grid, or an n^3 cube when n is positive,
// subject to the same limits as the windowed sandbox
func extentFor(cfg *config.Config, n int) (grid.Extent, error) {
	c := *cfg
	if n > 0 {
		c.Grid = config.Grid{X: n, Y: n, Z: n}
	}
	if err := c.Validate(); err != nil {
		return grid.Extent{}, err
	}
	return c.Extent(), nil
}

func run(name string, extent grid.Extent, prm density.Params, iso float32, workers int) error {
	f, err := density.Lookup(name)
	if err != nil {
		return err
	}
	gen, err := density.NewGenerator(extent, f)
	if err != nil {
		return err
	}
	gen.SetWorkers(workers)
	vol, err := density.NewVolume(extent)
	if err != nil {
		return err
	}
	ex, err := mc.NewExtractor(extent)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := gen.Generate(context.Background(), vol, prm); err != nil {
		return fmt.Errorf("density generation failed: %w", err)
	}
	generated := time.Since(start)

	start = time.Now()
	mesh, err := ex.Extract(vol, iso)
	if err != nil {
		return err
	}
	extracted := time.Since(start)

	p := message.NewPrinter(language.English)
	lo, hi := vol.Range()
	p.Printf("Field %s on %s (threshold %.3f)\n", name, extent, iso)
	p.Printf("\n=== Density ===\n")
	p.Printf("  samples   : %d\n", extent.Len())
	p.Printf("  range     : %.4f .. %.4f\n", lo, hi)
	p.Printf("  generated : %v (%d workers)\n", generated.Round(time.Microsecond), workers)

	p.Printf("\n=== Mesh ===\n")
	p.Printf("  vertices  : %d\n", len(mesh.Vertices))
	p.Printf("  triangles : %d of %d\n", mesh.TriangleCount(), ex.Capacity())
	p.Printf("  extracted : %v\n", extracted.Round(time.Microsecond))
	if mesh.TriangleCount() == 0 {
		p.Printf("  (empty surface)\n")
		return nil
	}
	bmin, bmax := mesh.Bounds()
	p.Printf("  bounds    : (%.3f, %.3f, %.3f) .. (%.3f, %.3f, %.3f)\n",
		bmin.X(), bmin.Y(), bmin.Z(), bmax.X(), bmax.Y(), bmax.Z())
	p.Printf("  open edges: %d\n", mesh.OpenEdges())
	return nil
}
