package gesture

import (
	"math"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// DefaultThreshold - смещение указателя в пикселях, после которого нажатие становится перетаскиванием
const DefaultThreshold = 3

type EventType string

const (
	Start EventType = "start"
	Over  EventType = "over"
	End   EventType = "end"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Event - событие перетаскивания. Over равен nil, если указатель вне всех целей.
type Event struct {
	Type   EventType      `json:"type"`
	Active model.ItemRef  `json:"active"`
	Over   *model.ItemRef `json:"over,omitempty"`
}

type phase int

const (
	idle phase = iota
	pressed
	dragging
)

// Tracker превращает движения указателя в события start/over/end.
// Не потокобезопасен.
type Tracker struct {
	threshold float64

	phase  phase
	origin Point
	active model.ItemRef
	over   *model.ItemRef

	editing map[model.ItemRef]bool
}

func NewTracker(threshold float64) *Tracker {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{
		threshold: threshold,
		editing:   make(map[model.ItemRef]bool),
	}
}

// Active возвращает перетаскиваемый элемент или nil
func (t *Tracker) Active() *model.ItemRef {
	if t.phase != dragging {
		return nil
	}
	return t.active.Ref()
}

func (t *Tracker) Dragging() bool {
	return t.phase == dragging
}

// Press начинает жест на target. Элемент в режиме редактирования тащить нельзя.
func (t *Tracker) Press(p Point, target model.ItemRef) bool {
	if t.phase == dragging || t.editing[target] {
		return false
	}
	t.phase = pressed
	t.origin = p
	t.active = target
	t.over = nil
	return true
}

func (t *Tracker) Move(p Point, over *model.ItemRef) []Event {
	switch t.phase {
	case pressed:
		if p.dist(t.origin) <= t.threshold {
			return nil
		}
		t.phase = dragging
		t.over = clone(over)
		return []Event{
			{Type: Start, Active: t.active},
			{Type: Over, Active: t.active, Over: clone(over)},
		}
	case dragging:
		if sameTarget(t.over, over) {
			return nil
		}
		t.over = clone(over)
		return []Event{{Type: Over, Active: t.active, Over: clone(over)}}
	}
	return nil
}

// Release завершает жест. Нажатие, не превысившее порог, - это клик, события нет.
func (t *Tracker) Release(over *model.ItemRef) (Event, bool) {
	wasDragging := t.phase == dragging
	active := t.active
	t.reset()
	if !wasDragging {
		return Event{}, false
	}
	return Event{Type: End, Active: active, Over: clone(over)}, true
}

// Cancel прерывает жест; событие end приходит без цели
func (t *Tracker) Cancel() (Event, bool) {
	return t.Release(nil)
}

// Begin сразу начинает перетаскивание, для клиентов, которые сами отслеживают указатель
func (t *Tracker) Begin(active model.ItemRef) bool {
	if t.phase == dragging || t.editing[active] {
		return false
	}
	t.phase = dragging
	t.active = active
	t.over = nil
	return true
}

// SetEditing включает или выключает режим редактирования. Если редактировать
// начали перетаскиваемый элемент, жест отменяется.
func (t *Tracker) SetEditing(ref model.ItemRef, editing bool) (Event, bool) {
	if !editing {
		delete(t.editing, ref)
		return Event{}, false
	}
	t.editing[ref] = true
	if t.phase != idle && t.active == ref {
		return t.Cancel()
	}
	return Event{}, false
}

func (t *Tracker) Editing(ref model.ItemRef) bool {
	return t.editing[ref]
}

// Forget забывает режим редактирования удаленного элемента
func (t *Tracker) Forget(ref model.ItemRef) {
	delete(t.editing, ref)
}

func (t *Tracker) reset() {
	t.phase = idle
	t.active = model.ItemRef{}
	t.over = nil
}

func clone(r *model.ItemRef) *model.ItemRef {
	if r == nil {
		return nil
	}
	return r.Ref()
}

func sameTarget(a, b *model.ItemRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
