package model

import "fmt"

type ItemKind string

const (
	KindColumn ItemKind = "column"
	KindTask   ItemKind = "task"
)

func (k ItemKind) Valid() bool {
	return k == KindColumn || k == KindTask
}

// ItemRef указывает на колонку или задачу: то, что тащат, или то, над чем находится указатель.
type ItemRef struct {
	Kind ItemKind `json:"kind"`
	ID   int64    `json:"id"`
}

func ColumnRef(id int64) ItemRef { return ItemRef{Kind: KindColumn, ID: id} }

func TaskRef(id int64) ItemRef { return ItemRef{Kind: KindTask, ID: id} }

func (r ItemRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// Ref возвращает указатель на копию, удобно для необязательной цели
func (r ItemRef) Ref() *ItemRef {
	return &r
}

type Stats struct {
	TotalColumns int              `json:"total_columns"`
	TotalTasks   int              `json:"total_tasks"`
	ByPriority   map[Priority]int `json:"by_priority"`
	ByColumn     map[int64]int    `json:"by_column"`
}

type Snapshot struct {
	ID      string   `json:"id"`
	Columns []Column `json:"columns"`
	Tasks   []Task   `json:"tasks"`
	Active  *ItemRef `json:"active,omitempty"`
	Version int64    `json:"version"`
}

type DragResult struct {
	Board      Snapshot `json:"board"`
	Applied    bool     `json:"applied"`
	Diagnostic string   `json:"diagnostic,omitempty"`
}
