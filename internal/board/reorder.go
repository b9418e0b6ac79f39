package board

import (
	"errors"
	"fmt"
	"slices"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrActiveNotFound = fmt.Errorf("active item %w", ErrNotFound)
	ErrTargetNotFound = fmt.Errorf("drop target %w", ErrNotFound)
)

// Rules - какие правила перестановки разрешено применять
type Rules uint8

const (
	ColumnRules Rules = 1 << iota
	TaskRules

	AllRules = ColumnRules | TaskRules
)

type Result struct {
	Columns []model.Column
	Tasks   []model.Task
	Changed bool
}

// Reorder применяет перенос active на over и возвращает новые последовательности.
// Входные срезы не меняются. При ошибке Result содержит их копии без изменений.
func Reorder(columns []model.Column, tasks []model.Task, active model.ItemRef, over *model.ItemRef, rules Rules) (Result, error) {
	res := Result{
		Columns: slices.Clone(columns),
		Tasks:   slices.Clone(tasks),
	}

	if over == nil || *over == active {
		return res, nil
	}

	switch active.Kind {
	case model.KindColumn:
		if rules&ColumnRules == 0 {
			return res, nil
		}
		return reorderColumn(res, active, *over)
	case model.KindTask:
		if rules&TaskRules == 0 {
			return res, nil
		}
		return reorderTask(res, active, *over)
	default:
		return res, fmt.Errorf("%w: unknown kind %q", ErrActiveNotFound, active.Kind)
	}
}

func reorderColumn(res Result, active, over model.ItemRef) (Result, error) {
	from := columnIndex(res.Columns, active.ID)
	if from < 0 {
		return res, fmt.Errorf("%w: %s", ErrActiveNotFound, active)
	}

	var to int
	switch over.Kind {
	case model.KindColumn:
		to = columnIndex(res.Columns, over.ID)
	case model.KindTask:
		// колонку протащили над задачей - берем колонку, которой задача принадлежит
		ti := taskIndex(res.Tasks, over.ID)
		if ti < 0 {
			return res, fmt.Errorf("%w: %s", ErrTargetNotFound, over)
		}
		to = columnIndex(res.Columns, res.Tasks[ti].ColumnID)
	default:
		to = -1
	}
	if to < 0 {
		return res, fmt.Errorf("%w: %s", ErrTargetNotFound, over)
	}
	if from == to {
		return res, nil
	}

	res.Columns = Move(res.Columns, from, to)
	res.Changed = true
	return res, nil
}

func reorderTask(res Result, active, over model.ItemRef) (Result, error) {
	from := taskIndex(res.Tasks, active.ID)
	if from < 0 {
		return res, fmt.Errorf("%w: %s", ErrActiveNotFound, active)
	}
	moved := res.Tasks[from]

	switch over.Kind {
	case model.KindTask:
		to := taskIndex(res.Tasks, over.ID)
		if to < 0 {
			return res, fmt.Errorf("%w: %s", ErrTargetNotFound, over)
		}
		moved.ColumnID = res.Tasks[to].ColumnID

		res.Tasks[from] = moved
		res.Tasks = Move(res.Tasks, from, to)
		res.Changed = true
		return res, nil

	case model.KindColumn:
		if columnIndex(res.Columns, over.ID) < 0 {
			return res, fmt.Errorf("%w: %s", ErrTargetNotFound, over)
		}
		if moved.ColumnID == over.ID {
			return res, nil
		}
		moved.ColumnID = over.ID
		res.Tasks[from] = moved
		res.Changed = true
		return res, nil
	}

	return res, fmt.Errorf("%w: %s", ErrTargetNotFound, over)
}

func columnIndex(columns []model.Column, id int64) int {
	return slices.IndexFunc(columns, func(c model.Column) bool { return c.ID == id })
}

func taskIndex(tasks []model.Task, id int64) int {
	return slices.IndexFunc(tasks, func(t model.Task) bool { return t.ID == id })
}
