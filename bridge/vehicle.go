package bridge

import "fmt"

// Phase is where a vehicle is in the crossing protocol.
type Phase int

const (
	Created Phase = iota
	Waiting
	OnBridge
	Crossing
	Exited
)

func (p Phase) String() string {
	switch p {
	case Created:
		return "Created"
	case Waiting:
		return "Waiting"
	case OnBridge:
		return "OnBridge"
	case Crossing:
		return "Crossing"
	case Exited:
		return "Exited"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Vehicle is owned by the goroutine running its protocol.
type Vehicle struct {
	ID        int
	Direction Direction
	Phase     Phase
}

func NewVehicle(id int, d Direction) *Vehicle {
	return &Vehicle{ID: id, Direction: d, Phase: Created}
}

func (v *Vehicle) String() string {
	return fmt.Sprintf("vehicle %d (%s, %s)", v.ID, v.Direction, v.Phase)
}
