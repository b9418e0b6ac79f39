package model

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultPriority назначается новым задачам
const DefaultPriority = PriorityMedium

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID       int64    `json:"id"`
	ColumnID int64    `json:"column_id"`
	Content  string   `json:"content"`
	Priority Priority `json:"priority"`
}

// TaskPatch - частичное обновление задачи. ColumnID на несуществующую колонку игнорируется.
type TaskPatch struct {
	Content  *string   `json:"content,omitempty"`
	Priority *Priority `json:"priority,omitempty"`
	ColumnID *int64    `json:"column_id,omitempty"`
}
