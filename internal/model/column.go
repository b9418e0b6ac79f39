package model

type Column struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// ColumnPatch - частичное обновление, nil поле не трогаем
type ColumnPatch struct {
	Title *string `json:"title,omitempty"`
}
