package geometry

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func samplePoints() []NodePoint {
	return []NodePoint{
		{X: 0, Y: 0, Size: 1},
		{X: 1, Y: 0, Size: 1},
		{X: 0.25, Y: 0.8, Size: 2},
		{X: 0.5, Y: 0.5, Size: 3},
		{X: -3.5, Y: 12.25, Size: 4},
	}
}

func TestRotatePointsZeroIsIdentity(t *testing.T) {
	points := samplePoints()
	want := slices.Clone(points)

	RotatePoints(points, 0)

	assert.Equal(t, want, points)
}

func TestRotatePointsRoundTrip(t *testing.T) {
	for _, angle := range []float64{1, 15, 45, 90, 137.5, 180, 270, 359, -60, 720} {
		points := samplePoints()
		want := slices.Clone(points)

		RotatePoints(points, angle)
		RotatePoints(points, -angle)

		for i := range points {
			assert.InDelta(t, want[i].X, points[i].X, tolerance, "angle %v point %d x", angle, i)
			assert.InDelta(t, want[i].Y, points[i].Y, tolerance, "angle %v point %d y", angle, i)
			assert.Equal(t, want[i].Size, points[i].Size)
		}
	}
}

func TestRotatePointsQuarterTurn(t *testing.T) {
	// (1, 0.5) is 0.5 right of the pivot; a clockwise quarter turn on a y-down
	// screen moves it 0.5 below the pivot.
	points := []NodePoint{{X: 1, Y: 0.5}}
	RotatePoints(points, 90)

	assert.InDelta(t, 0.5, points[0].X, tolerance)
	assert.InDelta(t, 1.0, points[0].Y, tolerance)
}

func TestRotatePointsKeepsPivot(t *testing.T) {
	points := []NodePoint{{X: PivotX, Y: PivotY}}
	RotatePoints(points, 33)

	assert.InDelta(t, PivotX, points[0].X, tolerance)
	assert.InDelta(t, PivotY, points[0].Y, tolerance)
}

func TestSampleArc(t *testing.T) {
	t.Run("single point does not divide by zero", func(t *testing.T) {
		points := SampleArc(1, 5, 0)
		require.Len(t, points, 1)
		assert.InDelta(t, 0.0, points[0].X, tolerance)
		assert.InDelta(t, 1.0, points[0].Y, tolerance)
		assert.Equal(t, 5, points[0].Size)
	})

	t.Run("count and first point", func(t *testing.T) {
		points := SampleArc(4, 10, 0)
		require.Len(t, points, 4)
		assert.InDelta(t, 0.0, points[0].X, tolerance)
		assert.InDelta(t, 1.0, points[0].Y, tolerance)
		assert.InDelta(t, 1.0, points[3].X, tolerance)
		assert.InDelta(t, 1.0, points[3].Y, tolerance)
		for _, p := range points {
			assert.Equal(t, 10, p.Size)
		}
	})

	t.Run("apex of an odd count sits at the top centre", func(t *testing.T) {
		points := SampleArc(5, 1, 0)
		require.Len(t, points, 5)
		assert.InDelta(t, 0.5, points[2].X, tolerance)
		assert.InDelta(t, 0.0, points[2].Y, tolerance)
	})

	t.Run("non-positive count yields nothing", func(t *testing.T) {
		assert.Empty(t, SampleArc(0, 1, 0))
		assert.Empty(t, SampleArc(-3, 1, 0))
	})

	t.Run("x is monotonic in the angle", func(t *testing.T) {
		points := SampleArc(25, 1, 0)
		for i := 1; i < len(points); i++ {
			assert.GreaterOrEqual(t, points[i].X, points[i-1].X)
		}
	})

	t.Run("rotation matches RotatePoints", func(t *testing.T) {
		want := SampleArc(7, 2, 0)
		RotatePoints(want, 30)

		got := SampleArc(7, 2, 30)
		for i := range want {
			assert.InDelta(t, want[i].X, got[i].X, tolerance)
			assert.InDelta(t, want[i].Y, got[i].Y, tolerance)
		}
	})
}

func TestFitReduction(t *testing.T) {
	assert.Equal(t, 1.0, FitReduction(1))
	assert.Equal(t, 1.0, FitReduction(0))
	assert.InDelta(t, 1/math.Pow(10, 0.03), FitReduction(10), tolerance)
	assert.Less(t, FitReduction(20), FitReduction(2))
}

func TestShrink(t *testing.T) {
	points := []NodePoint{{X: 0, Y: 1, Z: 2}, {X: 0.5, Y: 0.5}}
	Shrink(points, 0.5, PivotX, PivotY)

	assert.InDelta(t, 0.25, points[0].X, tolerance)
	assert.InDelta(t, 0.75, points[0].Y, tolerance)
	assert.InDelta(t, 1.0, points[0].Z, tolerance)
	assert.InDelta(t, 0.5, points[1].X, tolerance)
	assert.InDelta(t, 0.5, points[1].Y, tolerance)
}

func TestRotateAxes(t *testing.T) {
	t.Run("z quarter turn", func(t *testing.T) {
		points := []NodePoint{{X: 1}}
		RotateAxes(points, []AxisRotation{{Axis: AxisZ, Angle: 90}})
		assert.InDelta(t, 0.0, points[0].X, tolerance)
		assert.InDelta(t, 1.0, points[0].Y, tolerance)
	})

	t.Run("x quarter turn moves y into z", func(t *testing.T) {
		points := []NodePoint{{Y: 1}}
		RotateAxes(points, []AxisRotation{{Axis: AxisX, Angle: 90}})
		assert.InDelta(t, 0.0, points[0].Y, tolerance)
		assert.InDelta(t, 1.0, points[0].Z, tolerance)
	})

	t.Run("round trip in reverse order", func(t *testing.T) {
		points := []NodePoint{{X: 0.3, Y: -0.2, Z: 0.1}}
		want := slices.Clone(points)
		RotateAxes(points, []AxisRotation{{AxisX, 20}, {AxisY, 35}, {AxisZ, 50}})
		RotateAxes(points, []AxisRotation{{AxisZ, -50}, {AxisY, -35}, {AxisX, -20}})
		assert.InDelta(t, want[0].X, points[0].X, tolerance)
		assert.InDelta(t, want[0].Y, points[0].Y, tolerance)
		assert.InDelta(t, want[0].Z, points[0].Z, tolerance)
	})
}

func TestParseAxis(t *testing.T) {
	for in, want := range map[string]Axis{"x": AxisX, "Y": AxisY, "ZAxis": AxisZ, "zaxis": AxisZ} {
		got, err := ParseAxis(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseAxis("w")
	assert.Error(t, err)
}

func TestMatrixInvert(t *testing.T) {
	m := Translate(12, -4).Multiply(Scale(2.5, 2.5)).Multiply(RotateAbout(30, 50, 25))
	inv := m.Invert()

	x, y := m.TransformPoint(17, 9)
	bx, by := inv.TransformPoint(x, y)
	assert.InDelta(t, 17.0, bx, tolerance)
	assert.InDelta(t, 9.0, by, tolerance)
	assert.True(t, m.Multiply(inv).IsIdentity())
}

func TestMatrixSingularInvertsToIdentity(t *testing.T) {
	assert.True(t, Scale(0, 1).Invert().IsIdentity())
}

func TestRectHelpers(t *testing.T) {
	r := SquareAround(10, 10, 6)
	assert.True(t, r.Contains(7, 13))
	assert.False(t, r.Contains(6.9, 10))

	b := BoundsOf([]NodePoint{{X: 1, Y: 2}, {X: -1, Y: 5}})
	assert.Equal(t, Rect{X: -1, Y: 2, Width: 2, Height: 3}, b)
}
