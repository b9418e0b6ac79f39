package board

import (
	"fmt"
	"slices"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// Board хранит упорядоченные колонки и задачи одной доски.
// Не потокобезопасен: доступ сериализует вызывающий код (см. worker.Pool).
type Board struct {
	columns []model.Column
	tasks   []model.Task
	lastID  int64
	version int64
}

func New() *Board {
	return &Board{}
}

// nextID выдает идентификаторы по возрастанию, коллизий нет за все время жизни доски
func (b *Board) nextID() int64 {
	b.lastID++
	return b.lastID
}

func (b *Board) changed() {
	b.version++
}

func (b *Board) Version() int64 {
	return b.version
}

func (b *Board) Columns() []model.Column {
	return slices.Clone(b.columns)
}

func (b *Board) Tasks() []model.Task {
	return slices.Clone(b.tasks)
}

// TasksIn возвращает задачи колонки в порядке отображения
func (b *Board) TasksIn(columnID int64) []model.Task {
	out := make([]model.Task, 0)
	for _, t := range b.tasks {
		if t.ColumnID == columnID {
			out = append(out, t)
		}
	}
	return out
}

func (b *Board) Column(id int64) (model.Column, bool) {
	i := columnIndex(b.columns, id)
	if i < 0 {
		return model.Column{}, false
	}
	return b.columns[i], true
}

func (b *Board) Task(id int64) (model.Task, bool) {
	i := taskIndex(b.tasks, id)
	if i < 0 {
		return model.Task{}, false
	}
	return b.tasks[i], true
}

// Has - существует ли колонка или задача, на которую указывает ref
func (b *Board) Has(ref model.ItemRef) bool {
	switch ref.Kind {
	case model.KindColumn:
		return columnIndex(b.columns, ref.ID) >= 0
	case model.KindTask:
		return taskIndex(b.tasks, ref.ID) >= 0
	}
	return false
}

func (b *Board) CreateColumn() model.Column {
	c := model.Column{
		ID:    b.nextID(),
		Title: fmt.Sprintf("Column %d", len(b.columns)+1),
	}
	b.columns = append(b.columns, c)
	b.changed()
	return c
}

// CreateTask добавляет задачу с текстом и приоритетом по умолчанию.
// Если колонки нет - ничего не делает и возвращает false.
func (b *Board) CreateTask(columnID int64) (model.Task, bool) {
	if columnIndex(b.columns, columnID) < 0 {
		return model.Task{}, false
	}
	t := model.Task{
		ID:       b.nextID(),
		ColumnID: columnID,
		Content:  fmt.Sprintf("Task %d", len(b.tasks)+1),
		Priority: model.DefaultPriority,
	}
	b.tasks = append(b.tasks, t)
	b.changed()
	return t, true
}

// DeleteColumn удаляет колонку вместе со всеми ее задачами
func (b *Board) DeleteColumn(id int64) {
	i := columnIndex(b.columns, id)
	if i < 0 {
		return
	}
	b.columns = slices.Delete(slices.Clone(b.columns), i, i+1)
	b.tasks = slices.DeleteFunc(slices.Clone(b.tasks), func(t model.Task) bool {
		return t.ColumnID == id
	})
	b.changed()
}

func (b *Board) DeleteTask(id int64) {
	i := taskIndex(b.tasks, id)
	if i < 0 {
		return
	}
	b.tasks = slices.Delete(slices.Clone(b.tasks), i, i+1)
	b.changed()
}

func (b *Board) UpdateColumn(id int64, patch model.ColumnPatch) (model.Column, bool) {
	i := columnIndex(b.columns, id)
	if i < 0 {
		return model.Column{}, false
	}
	c := b.columns[i]
	if patch.Title != nil {
		c.Title = *patch.Title
	}
	if c == b.columns[i] {
		return c, true
	}

	columns := slices.Clone(b.columns)
	columns[i] = c
	b.columns = columns
	b.changed()
	return c, true
}

// UpdateTask заменяет переданные поля задачи. ColumnID несуществующей колонки игнорируется.
func (b *Board) UpdateTask(id int64, patch model.TaskPatch) (model.Task, bool) {
	i := taskIndex(b.tasks, id)
	if i < 0 {
		return model.Task{}, false
	}
	t := b.tasks[i]
	if patch.Content != nil {
		t.Content = *patch.Content
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.ColumnID != nil && columnIndex(b.columns, *patch.ColumnID) >= 0 {
		t.ColumnID = *patch.ColumnID
	}
	if t == b.tasks[i] {
		return t, true
	}

	tasks := slices.Clone(b.tasks)
	tasks[i] = t
	b.tasks = tasks
	b.changed()
	return t, true
}

// Drop применяет все правила перестановки сразу
func (b *Board) Drop(active model.ItemRef, over *model.ItemRef) (bool, error) {
	return b.apply(active, over, AllRules)
}

// DragOver применяет только правила для задач: задачи переезжают между колонками
// еще до отпускания указателя.
func (b *Board) DragOver(active model.ItemRef, over *model.ItemRef) (bool, error) {
	return b.apply(active, over, TaskRules)
}

// DragEnd применяет правила для колонок, когда указатель отпущен
func (b *Board) DragEnd(active model.ItemRef, over *model.ItemRef) (bool, error) {
	return b.apply(active, over, ColumnRules)
}

func (b *Board) apply(active model.ItemRef, over *model.ItemRef, rules Rules) (bool, error) {
	res, err := Reorder(b.columns, b.tasks, active, over, rules)
	if err != nil {
		return false, err
	}
	if !res.Changed {
		return false, nil
	}
	b.columns = res.Columns
	b.tasks = res.Tasks
	b.changed()
	return true, nil
}

func (b *Board) Stats() model.Stats {
	s := model.Stats{
		TotalColumns: len(b.columns),
		TotalTasks:   len(b.tasks),
		ByPriority:   make(map[model.Priority]int),
		ByColumn:     make(map[int64]int, len(b.columns)),
	}
	for _, c := range b.columns {
		s.ByColumn[c.ID] = 0
	}
	for _, t := range b.tasks {
		s.ByPriority[t.Priority]++
		s.ByColumn[t.ColumnID]++
	}
	return s
}
