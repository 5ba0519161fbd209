// Package relative computes the pairwise relative state of every tracked
// spacecraft. Rows and columns are ordered by ascending spacecraft id.
package relative

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/core/dynamics"
	"github.com/signalsfoundry/spacecraft-simulator/core/frames"
	"github.com/signalsfoundry/spacecraft-simulator/core/telemetry"
	"github.com/signalsfoundry/spacecraft-simulator/kb"
	"github.com/signalsfoundry/spacecraft-simulator/model"
)

// Tracker holds n×n grids of relative quantities for the spacecraft it
// tracks. Entry [i][j] describes target i relative to reference j. Every
// registry change resizes and reinitialises the grids; Update recomputes
// every entry.
type Tracker struct {
	mu    sync.Mutex
	arena *kb.KnowledgeBase

	ids   []int
	index map[int]int

	posI     [][]r3.Vec
	velI     [][]r3.Vec
	posRTN   [][]r3.Vec
	velRTN   [][]r3.Vec
	distance [][]float64
	attitude [][]quat.Number

	unsubscribe func()
}

// NewTracker creates an empty tracker over arena. Spacecraft removed from
// the arena are dropped from the tracker automatically.
func NewTracker(arena *kb.KnowledgeBase) *Tracker {
	t := &Tracker{arena: arena, index: make(map[int]int)}
	t.unsubscribe = arena.Subscribe(func(e kb.Event) {
		if e.Type != kb.EventSpacecraftRemoved {
			return
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.index[e.ID]; ok {
			t.removeLocked(e.ID)
		}
	})
	return t
}

// Close detaches the tracker from its arena.
func (t *Tracker) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
}

// RegisterSpacecraft starts tracking id, which must exist in the arena.
func (t *Tracker) RegisterSpacecraft(id int) error {
	if _, ok := t.arena.Spacecraft(id); !ok {
		return fmt.Errorf("relative: spacecraft %d is not in the arena: %w", id, model.ErrUnknownEntity)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[id]; ok {
		return fmt.Errorf("relative: spacecraft %d already tracked: %w", id, model.ErrInvalidConfiguration)
	}
	t.ids = append(t.ids, id)
	sort.Ints(t.ids)
	t.resizeLocked()
	return nil
}

// RemoveSpacecraft stops tracking id.
func (t *Tracker) RemoveSpacecraft(id int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[id]; !ok {
		return fmt.Errorf("relative: spacecraft %d not tracked: %w", id, model.ErrUnknownEntity)
	}
	t.removeLocked(id)
	return nil
}

func (t *Tracker) removeLocked(id int) {
	i := t.index[id]
	t.ids = append(t.ids[:i], t.ids[i+1:]...)
	t.resizeLocked()
}

// resizeLocked rebuilds every grid at the current size with zero vectors
// and identity quaternions.
func (t *Tracker) resizeLocked() {
	n := len(t.ids)
	t.index = make(map[int]int, n)
	for i, id := range t.ids {
		t.index[id] = i
	}
	t.posI = vecGrid(n)
	t.velI = vecGrid(n)
	t.posRTN = vecGrid(n)
	t.velRTN = vecGrid(n)
	t.distance = make([][]float64, n)
	t.attitude = make([][]quat.Number, n)
	for i := 0; i < n; i++ {
		t.distance[i] = make([]float64, n)
		t.attitude[i] = make([]quat.Number, n)
		for j := range t.attitude[i] {
			t.attitude[i][j] = frames.Identity
		}
	}
}

func vecGrid(n int) [][]r3.Vec {
	g := make([][]r3.Vec, n)
	for i := range g {
		g[i] = make([]r3.Vec, n)
	}
	return g
}

// Update recomputes every (target, reference) pair from the arena.
func (t *Tracker) Update() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.ids)
	states := make([]dynamics.State, n)
	rtn := make([]quat.Number, n)
	omega := make([]r3.Vec, n)
	for i, id := range t.ids {
		s, ok := t.arena.Spacecraft(id)
		if !ok {
			return fmt.Errorf("relative: spacecraft %d left the arena: %w", id, model.ErrStaleReference)
		}
		states[i] = s
		pos, vel := s.Position_i(), s.Velocity_i()
		q, err := frames.QuaternionI2RTN(pos, vel)
		if err != nil {
			return fmt.Errorf("relative: spacecraft %d: %w", id, err)
		}
		rtn[i] = q
		r := r3.Norm(pos)
		omega[i] = r3.Scale(1/(r*r), r3.Cross(pos, vel))
	}

	for i := 0; i < n; i++ {
		target := states[i]
		for j := 0; j < n; j++ {
			if i == j {
				t.posI[i][j], t.velI[i][j] = r3.Vec{}, r3.Vec{}
				t.posRTN[i][j], t.velRTN[i][j] = r3.Vec{}, r3.Vec{}
				t.distance[i][j] = 0
				t.attitude[i][j] = frames.Identity
				continue
			}
			ref := states[j]
			dp := r3.Sub(target.Position_i(), ref.Position_i())
			dv := r3.Sub(target.Velocity_i(), ref.Velocity_i())
			t.posI[i][j] = dp
			t.velI[i][j] = dv
			t.posRTN[i][j] = frames.FrameConversion(rtn[j], dp)
			t.velRTN[i][j] = frames.FrameConversion(rtn[j], r3.Sub(dv, r3.Cross(omega[j], dp)))
			t.distance[i][j] = r3.Norm(dp)
			t.attitude[i][j] = frames.Relative(target.Quaternion_i2b(), ref.Quaternion_i2b())
		}
	}
	return nil
}

// IDs returns the tracked ids in row order.
func (t *Tracker) IDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.ids...)
}

// Len returns the grid dimension.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids)
}

// Index returns the row of id.
func (t *Tracker) Index(id int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[id]
	return i, ok
}

func (t *Tracker) pairLocked(target, reference int) (int, int, error) {
	i, ok := t.index[target]
	if !ok {
		return 0, 0, fmt.Errorf("relative: spacecraft %d not tracked: %w", target, model.ErrUnknownEntity)
	}
	j, ok := t.index[reference]
	if !ok {
		return 0, 0, fmt.Errorf("relative: spacecraft %d not tracked: %w", reference, model.ErrUnknownEntity)
	}
	return i, j, nil
}

func vecAt(t *Tracker, g func() [][]r3.Vec, target, reference int) (r3.Vec, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, j, err := t.pairLocked(target, reference)
	if err != nil {
		return r3.Vec{}, err
	}
	return g()[i][j], nil
}

// RelativePosition_i is target − reference in the inertial frame [m].
func (t *Tracker) RelativePosition_i(target, reference int) (r3.Vec, error) {
	return vecAt(t, func() [][]r3.Vec { return t.posI }, target, reference)
}

// RelativeVelocity_i is the inertial velocity difference [m/s].
func (t *Tracker) RelativeVelocity_i(target, reference int) (r3.Vec, error) {
	return vecAt(t, func() [][]r3.Vec { return t.velI }, target, reference)
}

// RelativePosition_rtn is the relative position in the reference's RTN frame [m].
func (t *Tracker) RelativePosition_rtn(target, reference int) (r3.Vec, error) {
	return vecAt(t, func() [][]r3.Vec { return t.posRTN }, target, reference)
}

// RelativeVelocity_rtn is the relative velocity seen from the rotating
// RTN frame of the reference [m/s].
func (t *Tracker) RelativeVelocity_rtn(target, reference int) (r3.Vec, error) {
	return vecAt(t, func() [][]r3.Vec { return t.velRTN }, target, reference)
}

// RelativeDistance is |target − reference| [m].
func (t *Tracker) RelativeDistance(target, reference int) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, j, err := t.pairLocked(target, reference)
	if err != nil {
		return 0, err
	}
	return t.distance[i][j], nil
}

// RelativeAttitude is q_target_i2b ⊗ conj(q_reference_i2b).
func (t *Tracker) RelativeAttitude(target, reference int) (quat.Number, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, j, err := t.pairLocked(target, reference)
	if err != nil {
		return quat.Number{}, err
	}
	return t.attitude[i][j], nil
}

var _ telemetry.Loggable = (*Tracker)(nil)

// LogHeader covers the strictly lower triangle (target row > reference column).
func (t *Tracker) LogHeader() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	for i := range t.ids {
		for j := 0; j < i; j++ {
			pair := strconv.Itoa(t.ids[i]) + "_" + strconv.Itoa(t.ids[j])
			b.WriteString(telemetry.VectorHeader("rel_pos_i_"+pair, "m"))
			b.WriteString(telemetry.VectorHeader("rel_vel_i_"+pair, "m/s"))
			b.WriteString(telemetry.VectorHeader("rel_pos_rtn_"+pair, "m"))
			b.WriteString(telemetry.VectorHeader("rel_vel_rtn_"+pair, "m/s"))
			b.WriteString(telemetry.ScalarHeader("rel_distance_"+pair, "m"))
		}
	}
	return b.String()
}

func (t *Tracker) LogValue() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	for i := range t.ids {
		for j := 0; j < i; j++ {
			b.WriteString(telemetry.VectorValue(t.posI[i][j]))
			b.WriteString(telemetry.VectorValue(t.velI[i][j]))
			b.WriteString(telemetry.VectorValue(t.posRTN[i][j]))
			b.WriteString(telemetry.VectorValue(t.velRTN[i][j]))
			b.WriteString(telemetry.ScalarValue(t.distance[i][j]))
		}
	}
	return b.String()
}

// Distances calls fn for every pair in the lower triangle.
func (t *Tracker) Distances(fn func(target, reference int, distance float64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.ids {
		for j := 0; j < i; j++ {
			fn(t.ids[i], t.ids[j], t.distance[i][j])
		}
	}
}
