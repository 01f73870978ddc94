package domain

import "time"

type ProjectStatus string

const (
	ProjectActive ProjectStatus = "active"
	ProjectClosed ProjectStatus = "closed"
)

type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	OwnerID     string        `json:"owner_id"`
	Status      ProjectStatus `json:"status" enum:"active,closed"`
	CreatedAt   time.Time     `json:"created_at" format:"date-time"`
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status" enum:"todo,in_progress,done"`
	Priority    int        `json:"priority"`
	CreatedAt   time.Time  `json:"created_at" format:"date-time"`
	UpdatedAt   time.Time  `json:"updated_at" format:"date-time"`
	Deadline    *time.Time `json:"deadline,omitempty" format:"date-time"`
	CompletedAt *time.Time `json:"completed_at,omitempty" format:"date-time"`
	Assignees   []string   `json:"assignees"`
}

// Done reports whether the task reached its terminal status.
func (t Task) Done() bool {
	return t.Status == TaskDone
}

// AssignedTo reports whether memberID is among the assignees.
func (t Task) AssignedTo(memberID string) bool {
	for _, id := range t.Assignees {
		if id == memberID {
			return true
		}
	}
	return false
}

// Facts returns the read-only timing projection used by scoring.
func (t Task) Facts() TaskFacts {
	return TaskFacts{
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
		Deadline:    t.Deadline,
	}
}

// TaskFacts is the immutable projection of a task consumed by the scoring policy.
type TaskFacts struct {
	Priority    int
	CreatedAt   time.Time
	CompletedAt *time.Time
	Deadline    *time.Time
}

// Report is a peer review left on a task by one member.
type Report struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	TaskID      string    `json:"task_id"`
	ReporterID  string    `json:"reporter_id"`
	Description string    `json:"description"`
	Sentiment   int       `json:"sentiment" minimum:"1" maximum:"5"`
	CreatedAt   time.Time `json:"created_at" format:"date-time"`
}
