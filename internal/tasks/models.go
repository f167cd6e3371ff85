package tasks

type Task struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description" db:"description"`
	Frequency   string  `json:"frequency" db:"frequency"`
	AssignedTo  string  `json:"assigned_to" db:"assigned_to"`
	Points      int64   `json:"points" db:"points"`
	Completed   bool    `json:"completed" db:"completed"`
}

// TaskInput is the writable part of a task, shared by create and update.
type TaskInput struct {
	Name        string
	Description *string
	Frequency   string
	AssignedTo  string
	Points      int64
}

type Scores struct {
	Difference int64 `json:"difference"`
}

// Completion is the body returned by the complete endpoint.
type Completion struct {
	ID        int64 `json:"id"`
	Completed bool  `json:"completed"`
	Points    int64 `json:"points"`
}
