package overlay

// Input is the pointer state the widgets read. Window callbacks update it
// between frames; the press and release edges last for one frame.
type Input struct {
	X, Y     float64
	Down     bool
	Pressed  bool
	Released bool
}

// MoveTo records the pointer position in framebuffer pixels
func (in *Input) MoveTo(x, y float64) {
	in.X, in.Y = x, y
}

// Press records the primary button going down
func (in *Input) Press() {
	in.Down = true
	in.Pressed = true
}

// Release records the primary button going up
func (in *Input) Release() {
	in.Down = false
	in.Released = true
}

// endFrame clears the one-frame edges
func (in *Input) endFrame() {
	in.Pressed = false
	in.Released = false
}
