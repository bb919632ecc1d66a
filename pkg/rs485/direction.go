package rs485

import "time"

// Direction of the bus transceiver.
type Direction int

// Directions.
const (
	Receive Direction = iota
	Transmit
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Transmit {
		return "transmit"
	}
	return "receive"
}

// DirectionLine drives the send/receive enable line of the transceiver.
type DirectionLine interface {
	SetDirection(Direction) error
}

// DefaultTurnaround is the settle delay after switching to transmit.
const DefaultTurnaround = 5 * time.Millisecond

type nopLine struct{}

func (nopLine) SetDirection(Direction) error { return nil }

// DirectionController owns the direction line and tracks the settle delay
// after switching to transmit.
type DirectionController struct {
	Line   DirectionLine
	Settle time.Duration

	dir      Direction
	switched time.Time
	now      func() time.Time
}

// NewDirectionController creates a DirectionController. A nil line is
// valid for transceivers switched by the serial driver itself.
func NewDirectionController(line DirectionLine, settle time.Duration) *DirectionController {
	if line == nil {
		line = nopLine{}
	}
	return &DirectionController{Line: line, Settle: settle, now: time.Now}
}

// Direction returns the current direction.
func (c *DirectionController) Direction() Direction {
	return c.dir
}

// Transmit switches the line to transmit and returns how long to wait
// before the first character may be clocked out.
func (c *DirectionController) Transmit() (time.Duration, error) {
	if c.dir == Transmit {
		return c.Remaining(), nil
	}
	if err := c.Line.SetDirection(Transmit); err != nil {
		return 0, err
	}
	c.dir, c.switched = Transmit, c.now()
	return c.Settle, nil
}

// Remaining returns the part of the settle delay not yet elapsed.
func (c *DirectionController) Remaining() time.Duration {
	if c.dir != Transmit {
		return c.Settle
	}
	if d := c.Settle - c.now().Sub(c.switched); d > 0 {
		return d
	}
	return 0
}

// Ready indicates the line is in transmit and has settled.
func (c *DirectionController) Ready() bool {
	return c.dir == Transmit && c.Remaining() == 0
}

// Receive switches the line back to receive.
func (c *DirectionController) Receive() error {
	if c.dir == Receive {
		return nil
	}
	c.dir = Receive
	return c.Line.SetDirection(Receive)
}
