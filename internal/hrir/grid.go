package hrir

import (
	"errors"
	"fmt"
	"math"
)

// MaxAzimuth bounds the synthesizer's angular domain in degrees.
const MaxAzimuth = 90.0

var (
	// ErrInvalidGrid is returned by NewGrid for unusable azimuth lists.
	ErrInvalidGrid = errors.New("invalid azimuth grid")
	// ErrInvalidAzimuth is returned for non-finite or out-of-domain azimuths.
	ErrInvalidAzimuth = errors.New("invalid azimuth")
)

// cipicAzimuths is the horizontal-plane azimuth set of the CIPIC database.
var cipicAzimuths = [...]float64{
	-80, -65, -55, -45, -40, -35, -30, -25, -20, -15, -10, -5,
	0,
	5, 10, 15, 20, 25, 30, 35, 40, 45, 55, 65, 80,
}

// CIPICAzimuths returns a fresh copy of the 25 CIPIC horizontal azimuths.
func CIPICAzimuths() []float64 {
	out := make([]float64, len(cipicAzimuths))
	copy(out, cipicAzimuths[:])
	return out
}

// Grid is an immutable ordered set of azimuths in degrees. Its order
// is the output order of every dataset built from it.
type Grid struct {
	azimuths []float64
}

// NewGrid validates and copies azimuths into a Grid.
func NewGrid(azimuths []float64) (Grid, error) {
	if len(azimuths) == 0 {
		return Grid{}, fmt.Errorf("%w: no azimuths", ErrInvalidGrid)
	}

	seen := make(map[float64]int, len(azimuths))
	out := make([]float64, len(azimuths))
	for i, az := range azimuths {
		if err := checkAzimuth(az); err != nil {
			return Grid{}, fmt.Errorf("%w: position %d: %w", ErrInvalidGrid, i, err)
		}
		// -0 and 0 are the same direction.
		if az == 0 {
			az = 0
		}
		if j, dup := seen[az]; dup {
			return Grid{}, fmt.Errorf("%w: azimuth %v repeated at positions %d and %d", ErrInvalidGrid, az, j, i)
		}
		seen[az] = i
		out[i] = az
	}

	return Grid{azimuths: out}, nil
}

// CIPICGrid returns the 25-point CIPIC horizontal grid.
func CIPICGrid() Grid {
	g, err := NewGrid(CIPICAzimuths())
	if err != nil {
		panic(err)
	}
	return g
}

// Len returns the number of azimuths.
func (g Grid) Len() int { return len(g.azimuths) }

// At returns the i-th azimuth.
func (g Grid) At(i int) float64 { return g.azimuths[i] }

// Azimuths returns a copy of the ordered azimuths.
func (g Grid) Azimuths() []float64 {
	return append([]float64(nil), g.azimuths...)
}

// Index returns the grid position of az, or -1.
func (g Grid) Index(az float64) int {
	for i, v := range g.azimuths {
		if v == az {
			return i
		}
	}
	return -1
}

func checkAzimuth(az float64) error {
	if math.IsNaN(az) || math.IsInf(az, 0) {
		return fmt.Errorf("%w: %v is not finite", ErrInvalidAzimuth, az)
	}
	if math.Abs(az) > MaxAzimuth {
		return fmt.Errorf("%w: %v outside [-%v, %v]", ErrInvalidAzimuth, az, MaxAzimuth, MaxAzimuth)
	}
	return nil
}
