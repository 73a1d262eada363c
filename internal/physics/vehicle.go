package physics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// VehicleStates is x, y, heading, speed.
	VehicleStates = 4
	// VehicleInputs is speed and yaw rate.
	VehicleInputs = 2
)

// Vehicle is a planar unicycle. Speed is an input, not integrated: the
// fourth state component copies the commanded speed every step.
type Vehicle struct{}

// Step advances x by one interval under input u = (v, yaw rate):
//
//	x' = F·x + B(x)·u
//	F  = diag(1, 1, 1, 0)
//	B  = [cos(yaw)·dt 0; sin(yaw)·dt 0; 0 dt; 1 0]
func (Vehicle) Step(x, u mat.Vector, dt float64) *mat.VecDense {
	yaw := x.AtVec(2)

	F := mat.NewDiagDense(VehicleStates, []float64{1, 1, 1, 0})
	B := mat.NewDense(VehicleStates, VehicleInputs, []float64{
		math.Cos(yaw) * dt, 0,
		math.Sin(yaw) * dt, 0,
		0, dt,
		1, 0,
	})

	var fx, bu mat.VecDense
	fx.MulVec(F, x)
	bu.MulVec(B, u)
	fx.AddVec(&fx, &bu)
	return &fx
}

// Landmark is a fixed, known 2-D beacon.
type Landmark struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Distance returns the Euclidean distance from (x, y) to the landmark.
func (l Landmark) Distance(x, y float64) float64 {
	return math.Hypot(x-l.X, y-l.Y)
}

// DefaultLandmarks are the four beacons of the reference localization run.
func DefaultLandmarks() []Landmark {
	return []Landmark{
		{X: 10, Y: 0},
		{X: 10, Y: 10},
		{X: 0, Y: 15},
		{X: -5, Y: 20},
	}
}
