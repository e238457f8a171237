package models

const TodoStatusDone = "Done"

// TodoItem is one entry of `todo_lists/{uid}.todos`.
type TodoItem struct {
	ID          any     `json:"id"` // clients send numeric or string ids
	Text        string  `json:"text"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority,omitempty"`
	StartDate   string  `json:"startDate,omitempty"`
	DueDate     string  `json:"dueDate,omitempty"`
	CompletedAt *string `json:"completedAt"`
}

type TodoList struct {
	Todos []TodoItem `json:"todos"`
}
