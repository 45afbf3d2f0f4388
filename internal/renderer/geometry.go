package renderer

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/rajveermalviya/go-webgpu/wgpu"

	"isosandbox/internal/logging"
	"isosandbox/internal/mc"
	"isosandbox/pkg/grid"
)

// Vertex is the interleaved layout read by the mesh pipeline and written by
// the extraction pass: position then colour, 24 bytes
type Vertex struct {
	Position [3]float32
	Color    [3]float32
}

const (
	// VertexStride is the byte size of one Vertex
	VertexStride = uint64(unsafe.Sizeof(Vertex{}))
	// GeometrySlots is the number of geometry buffer sets rotated across frames
	GeometrySlots = 2

	counterSize  = 16
	drawArgsSize = 20
)

// GeometryLayout is the fixed size of one set of geometry buffers
type GeometryLayout struct {
	Triangles   uint32
	Vertices    uint32
	Indices     uint32
	VertexBytes uint64
	IndexBytes  uint64
}

// LayoutFor sizes the geometry buffers for a sample extent. Every triangle
// owns three vertices and three indices so the extraction pass needs no
// vertex sharing.
func LayoutFor(e grid.Extent) GeometryLayout {
	tris := uint32(mc.Capacity(e))
	return GeometryLayout{
		Triangles:   tris,
		Vertices:    3 * tris,
		Indices:     3 * tris,
		VertexBytes: uint64(3*tris) * VertexStride,
		IndexBytes:  uint64(3*tris) * 4,
	}
}

// counterState mirrors the Counter struct of the extraction shader
type counterState struct {
	Reserved uint32
	Written  uint32
	Overflow uint32
}

func decodeCounter(b []byte) counterState {
	if len(b) < 12 {
		return counterState{}
	}
	return counterState{
		Reserved: binary.LittleEndian.Uint32(b[0:]),
		Written:  binary.LittleEndian.Uint32(b[4:]),
		Overflow: binary.LittleEndian.Uint32(b[8:]),
	}
}

// GeometrySlot is one set of buffers written by extraction and read by the draw
type GeometrySlot struct {
	index    int
	vertices *wgpu.Buffer
	indices  *wgpu.Buffer
	counter  *wgpu.Buffer
	drawArgs *wgpu.Buffer
	readback *wgpu.Buffer

	extractGroup *wgpu.BindGroup

	// pending is set while readback has an outstanding map request
	pending bool
	mapped  bool
	failed  bool

	// count is the number of valid indices when the slot was filled on the CPU
	count uint32
	// indirect is set when the draw count lives in drawArgs
	indirect bool
}

// Index returns the slot number
func (s *GeometrySlot) Index() int {
	return s.index
}

// GeometryBuffers rotates GeometrySlots sets of fixed-capacity buffers.
// A slot is handed out again only after its previous readback completed,
// so extraction never writes buffers a previous frame may still read.
type GeometryBuffers struct {
	device *wgpu.Device
	layout GeometryLayout
	slots  [GeometrySlots]*GeometrySlot
	next   int

	last counterState
}

func newGeometryBuffers(device *wgpu.Device, extent grid.Extent) (*GeometryBuffers, error) {
	g := &GeometryBuffers{device: device, layout: LayoutFor(extent)}
	for i := range g.slots {
		slot, err := g.createSlot(i)
		if err != nil {
			g.Release()
			return nil, err
		}
		g.slots[i] = slot
	}
	logging.Logger().Debug("geometry buffers",
		"slots", GeometrySlots,
		"triangles", g.layout.Triangles,
		"vertex_bytes", g.layout.VertexBytes,
		"index_bytes", g.layout.IndexBytes)
	return g, nil
}

func (g *GeometryBuffers) createSlot(i int) (*GeometrySlot, error) {
	s := &GeometrySlot{index: i}
	var err error

	create := func(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
		b, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("%s_%d", label, i),
			Size:  size,
			Usage: usage,
		})
		if err != nil {
			return nil, fmt.Errorf("%s buffer creation failed: %w", label, err)
		}
		return b, nil
	}

	if s.vertices, err = create("geometry_vertices", g.layout.VertexBytes,
		wgpu.BufferUsage_Vertex|wgpu.BufferUsage_Storage|wgpu.BufferUsage_CopyDst); err != nil {
		return nil, err
	}
	if s.indices, err = create("geometry_indices", g.layout.IndexBytes,
		wgpu.BufferUsage_Index|wgpu.BufferUsage_Storage|wgpu.BufferUsage_CopyDst); err != nil {
		s.release()
		return nil, err
	}
	if s.counter, err = create("geometry_counter", counterSize,
		wgpu.BufferUsage_Storage|wgpu.BufferUsage_CopyDst|wgpu.BufferUsage_CopySrc); err != nil {
		s.release()
		return nil, err
	}
	if s.drawArgs, err = create("geometry_draw_args", drawArgsSize,
		wgpu.BufferUsage_Indirect|wgpu.BufferUsage_Storage); err != nil {
		s.release()
		return nil, err
	}
	if s.readback, err = create("geometry_readback", counterSize,
		wgpu.BufferUsage_MapRead|wgpu.BufferUsage_CopyDst); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

// Layout returns the buffer sizes shared by every slot
func (g *GeometryBuffers) Layout() GeometryLayout {
	return g.layout
}

// Next waits until the next slot is free, collects its last readback and
// returns it
func (g *GeometryBuffers) Next() *GeometrySlot {
	s := g.slots[g.next]
	g.next = (g.next + 1) % GeometrySlots

	if s.pending {
		g.device.Poll(true, nil)
		if s.mapped {
			data := s.readback.GetMappedRange(0, counterSize)
			g.last = decodeCounter(data)
			s.readback.Unmap()
			if g.last.Overflow != 0 {
				logging.Logger().Error("iso-surface exceeded geometry capacity",
					"reserved", g.last.Reserved, "capacity", g.layout.Triangles)
			}
		} else if s.failed {
			logging.Logger().Warn("geometry readback failed", "slot", s.index)
		}
		s.pending, s.mapped, s.failed = false, false, false
	}
	return s
}

// requestReadback maps the slot's staging buffer after the frame that
// filled it has been submitted
func (g *GeometryBuffers) requestReadback(s *GeometrySlot) {
	s.pending = true
	err := s.readback.MapAsync(wgpu.MapMode_Read, 0, counterSize, func(status wgpu.BufferMapAsyncStatus) {
		if status == wgpu.BufferMapAsyncStatus_Success {
			s.mapped = true
		} else {
			s.failed = true
		}
	})
	if err != nil {
		logging.Logger().Warn("geometry readback map failed", "slot", s.index, "err", err)
		s.pending = false
	}
}

// LastCount returns the most recent counter read back from the device
func (g *GeometryBuffers) LastCount() (triangles uint32, overflow bool) {
	return min(g.last.Written, g.layout.Triangles), g.last.Overflow != 0
}

// flatten converts an extracted mesh into the vertex layout of the mesh
// pipeline, encoding the normal as a colour
func flatten(m *mc.Mesh) []Vertex {
	out := make([]Vertex, len(m.Vertices))
	for i, v := range m.Vertices {
		out[i] = Vertex{
			Position: [3]float32{v.Position.X(), v.Position.Y(), v.Position.Z()},
			Color: [3]float32{
				v.Normal.X()*0.5 + 0.5,
				v.Normal.Y()*0.5 + 0.5,
				v.Normal.Z()*0.5 + 0.5,
			},
		}
	}
	return out
}

// checkFits reports whether a CPU mesh fits a slot
func (g *GeometryBuffers) checkFits(m *mc.Mesh) error {
	if uint64(len(m.Vertices)) > uint64(g.layout.Vertices) || uint64(len(m.Indices)) > uint64(g.layout.Indices) {
		return fmt.Errorf("%w: %d vertices, %d indices", mc.ErrCapacityExceeded, len(m.Vertices), len(m.Indices))
	}
	return nil
}

// upload writes a CPU mesh into a slot
func (g *GeometryBuffers) upload(queue *wgpu.Queue, s *GeometrySlot, m *mc.Mesh) error {
	if err := g.checkFits(m); err != nil {
		return err
	}
	s.indirect = false
	s.count = uint32(len(m.Indices))
	if s.count == 0 {
		return nil
	}
	queue.WriteBuffer(s.vertices, 0, wgpu.ToBytes(flatten(m)))
	queue.WriteBuffer(s.indices, 0, wgpu.ToBytes(m.Indices))
	return nil
}

func (s *GeometrySlot) release() {
	if s.extractGroup != nil {
		s.extractGroup.Release()
		s.extractGroup = nil
	}
	for _, b := range []**wgpu.Buffer{&s.vertices, &s.indices, &s.counter, &s.drawArgs, &s.readback} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
}

// Release frees every slot
func (g *GeometryBuffers) Release() {
	for i, s := range g.slots {
		if s != nil {
			s.release()
			g.slots[i] = nil
		}
	}
}
