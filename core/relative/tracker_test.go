package relative

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/core/frames"
	"github.com/signalsfoundry/spacecraft-simulator/kb"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

type stubState struct {
	pos, vel r3.Vec
	q        quat.Number
}

func (s *stubState) Mass() float64             { return 1 }
func (s *stubState) InertiaTensor() mat.Matrix { return mat.NewDiagDense(3, []float64{1, 1, 1}) }
func (s *stubState) Quaternion_i2b() quat.Number {
	if s.q == (quat.Number{}) {
		return frames.Identity
	}
	return s.q
}
func (s *stubState) AngularVelocity_b() r3.Vec { return r3.Vec{} }
func (s *stubState) Position_i() r3.Vec        { return s.pos }
func (s *stubState) Velocity_i() r3.Vec        { return s.vel }
func (s *stubState) Velocity_b() r3.Vec        { return s.vel }

func newArena(t *testing.T, states map[int]*stubState) *kb.KnowledgeBase {
	t.Helper()
	arena := kb.NewKnowledgeBase()
	for id, s := range states {
		require.NoError(t, arena.AddSpacecraft(id, "", s))
	}
	return arena
}

func assertVecNear(t *testing.T, want, got r3.Vec, tol float64) {
	t.Helper()
	if r3.Norm(r3.Sub(want, got)) > tol {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestScenarioRelativePositionAndDistance(t *testing.T) {
	arena := newArena(t, map[int]*stubState{
		1: {pos: r3.Vec{X: 7e6}, vel: r3.Vec{Y: 7500}},
		2: {pos: r3.Vec{X: 7e6, Y: 100}, vel: r3.Vec{Y: 7500}},
	})
	tr := NewTracker(arena)
	require.NoError(t, tr.RegisterSpacecraft(1))
	require.NoError(t, tr.RegisterSpacecraft(2))
	require.NoError(t, tr.Update())

	ab, err := tr.RelativePosition_i(1, 2)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 0, Y: -100, Z: 0}, ab)

	ba, err := tr.RelativePosition_i(2, 1)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{Y: 100}, ba)

	d, err := tr.RelativeDistance(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 100.0, d)
}

func TestRTNVelocityRemovesFrameRotation(t *testing.T) {
	arena := newArena(t, map[int]*stubState{
		1: {pos: r3.Vec{Y: 7e6}, vel: r3.Vec{X: -7500}},
		2: {pos: r3.Vec{Y: 7e6 + 100}, vel: r3.Vec{X: -7500}},
	})
	tr := NewTracker(arena)
	require.NoError(t, tr.RegisterSpacecraft(1))
	require.NoError(t, tr.RegisterSpacecraft(2))
	require.NoError(t, tr.Update())

	pos, err := tr.RelativePosition_rtn(2, 1)
	require.NoError(t, err)
	assertVecNear(t, r3.Vec{X: 100}, pos, 1e-9)

	vel, err := tr.RelativeVelocity_rtn(2, 1)
	require.NoError(t, err)
	assertVecNear(t, r3.Vec{Y: -0.75 / 7}, vel, 1e-12)

	velI, err := tr.RelativeVelocity_i(2, 1)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{}, velI)
}

func TestRelativeAttitude(t *testing.T) {
	s := math.Sqrt2 / 2
	turned := quat.Number{Real: s, Kmag: s}
	arena := newArena(t, map[int]*stubState{
		1: {pos: r3.Vec{X: 7e6}, vel: r3.Vec{Y: 7500}, q: turned},
		2: {pos: r3.Vec{X: 7e6, Y: 10}, vel: r3.Vec{Y: 7500}},
	})
	tr := NewTracker(arena)
	require.NoError(t, tr.RegisterSpacecraft(1))
	require.NoError(t, tr.RegisterSpacecraft(2))
	require.NoError(t, tr.Update())

	q, err := tr.RelativeAttitude(1, 2)
	require.NoError(t, err)
	assert.InDelta(t, turned.Real, q.Real, 1e-15)
	assert.InDelta(t, turned.Kmag, q.Kmag, 1e-15)

	q, err = tr.RelativeAttitude(2, 1)
	require.NoError(t, err)
	assert.InDelta(t, -turned.Kmag, q.Kmag, 1e-15)
}

func TestGridsAreSquareWithIdentityDiagonal(t *testing.T) {
	states := map[int]*stubState{}
	arena := kb.NewKnowledgeBase()
	tr := NewTracker(arena)
	for n := 1; n <= 4; n++ {
		id := n * 10
		states[id] = &stubState{
			pos: r3.Vec{X: 7e6 + float64(n)*1000, Y: float64(n) * 50},
			vel: r3.Vec{Y: 7500, Z: float64(n)},
			q:   frames.Normalize(quat.Number{Real: 1, Imag: 0.1 * float64(n)}),
		}
		require.NoError(t, arena.AddSpacecraft(id, "", states[id]))
		require.NoError(t, tr.RegisterSpacecraft(id))
		require.NoError(t, tr.Update())

		require.Equal(t, n, tr.Len())
		require.Len(t, tr.posI, n)
		for i, row := range tr.posI {
			require.Len(t, row, n)
			assert.Equal(t, r3.Vec{}, row[i])
			assert.Equal(t, r3.Vec{}, tr.velI[i][i])
			assert.Equal(t, r3.Vec{}, tr.posRTN[i][i])
			assert.Equal(t, r3.Vec{}, tr.velRTN[i][i])
			assert.Equal(t, 0.0, tr.distance[i][i])
			assert.Equal(t, frames.Identity, tr.attitude[i][i])
		}
	}
	assert.Equal(t, []int{10, 20, 30, 40}, tr.IDs())
}

func TestArenaRemovalResizesAndReinitialises(t *testing.T) {
	arena := newArena(t, map[int]*stubState{
		1: {pos: r3.Vec{X: 7e6}, vel: r3.Vec{Y: 7500}},
		2: {pos: r3.Vec{X: 7e6, Y: 100}, vel: r3.Vec{Y: 7500}},
		3: {pos: r3.Vec{X: 7e6, Z: 100}, vel: r3.Vec{Y: 7500}},
	})
	tr := NewTracker(arena)
	for _, id := range []int{3, 1, 2} {
		require.NoError(t, tr.RegisterSpacecraft(id))
	}
	require.NoError(t, tr.Update())

	require.NoError(t, arena.RemoveSpacecraft(2))
	assert.Equal(t, []int{1, 3}, tr.IDs())
	idx, ok := tr.Index(3)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	// no stale values survive the resize
	p, err := tr.RelativePosition_i(3, 1)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{}, p)
	_, err = tr.RelativePosition_i(2, 1)
	require.ErrorIs(t, err, model.ErrUnknownEntity)

	require.NoError(t, tr.Update())
	p, err = tr.RelativePosition_i(3, 1)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{Z: 100}, p)
}

func TestTrackerErrors(t *testing.T) {
	arena := newArena(t, map[int]*stubState{1: {pos: r3.Vec{X: 7e6}, vel: r3.Vec{Y: 7500}}})
	tr := NewTracker(arena)

	if err := tr.RegisterSpacecraft(9); !errors.Is(err, model.ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
	require.NoError(t, tr.RegisterSpacecraft(1))
	if err := tr.RegisterSpacecraft(1); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if err := tr.RemoveSpacecraft(9); !errors.Is(err, model.ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
	require.NoError(t, tr.RemoveSpacecraft(1))
	assert.Equal(t, 0, tr.Len())
}

func TestUpdateFailsOnDegenerateReference(t *testing.T) {
	arena := newArena(t, map[int]*stubState{
		1: {pos: r3.Vec{X: 7e6}, vel: r3.Vec{Y: 7500}},
		2: {pos: r3.Vec{}, vel: r3.Vec{Y: 7500}},
	})
	tr := NewTracker(arena)
	require.NoError(t, tr.RegisterSpacecraft(1))
	require.NoError(t, tr.RegisterSpacecraft(2))
	require.ErrorIs(t, tr.Update(), model.ErrDegenerateGeometry)
}

func TestCloseStopsFollowingArena(t *testing.T) {
	arena := newArena(t, map[int]*stubState{1: {pos: r3.Vec{X: 7e6}, vel: r3.Vec{Y: 7500}}})
	tr := NewTracker(arena)
	require.NoError(t, tr.RegisterSpacecraft(1))
	tr.Close()
	require.NoError(t, arena.RemoveSpacecraft(1))
	assert.Equal(t, 1, tr.Len())
	require.ErrorIs(t, tr.Update(), model.ErrStaleReference)
}

func TestLogCoversLowerTriangle(t *testing.T) {
	arena := newArena(t, map[int]*stubState{
		1: {pos: r3.Vec{X: 7e6}, vel: r3.Vec{Y: 7500}},
		2: {pos: r3.Vec{X: 7e6, Y: 100}, vel: r3.Vec{Y: 7500}},
		3: {pos: r3.Vec{X: 7e6, Z: 100}, vel: r3.Vec{Y: 7500}},
	})
	tr := NewTracker(arena)
	for _, id := range []int{1, 2, 3} {
		require.NoError(t, tr.RegisterSpacecraft(id))
	}
	require.NoError(t, tr.Update())

	header := tr.LogHeader()
	assert.Equal(t, 3*13, strings.Count(header, ","))
	assert.Contains(t, header, "rel_pos_i_2_1_x[m]")
	assert.Contains(t, header, "rel_vel_i_3_1_z[m/s]")
	assert.Contains(t, header, "rel_distance_2_1[m]")
	assert.Contains(t, header, "rel_distance_3_2[m]")
	assert.NotContains(t, header, "rel_distance_1_2")
	values := strings.Split(strings.TrimSuffix(tr.LogValue(), ","), ",")
	require.Len(t, values, 3*13)
	// pair (2,1) leads with the inertial relative position [0,100,0].
	assert.Equal(t, []string{"0", "100", "0"}, values[:3])

	var pairs int
	tr.Distances(func(_, _ int, d float64) {
		pairs++
		assert.Greater(t, d, 0.0)
	})
	assert.Equal(t, 3, pairs)
}
