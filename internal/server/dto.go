package server

import (
	"time"

	"taskraid/internal/domain"
	"taskraid/internal/events"
)

// Request payloads

type CreateProjectRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type CreateTaskRequest struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    int        `json:"priority,omitempty" minimum:"0"`
	Deadline    *time.Time `json:"deadline,omitempty" format:"date-time"`
}

type UpdateTaskRequest struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Priority      *int       `json:"priority,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty" format:"date-time"`
	ClearDeadline bool       `json:"clear_deadline,omitempty"`
	Status        string     `json:"status,omitempty" enum:"todo,in_progress"`
}

type AssignRequest struct {
	MemberID string `json:"member_id"`
}

type BossAttackRequest struct {
	TaskID string `json:"task_id"`
}

type HealRequest struct {
	MemberID  string  `json:"member_id"`
	HealValue float64 `json:"heal_value" minimum:"0" maximum:"100"`
}

type ReviveRequest struct {
	MemberID string `json:"member_id,omitempty"`
}

type ReviewRequest struct {
	Description string `json:"description"`
}

type UseItemRequest struct {
	OwnedItemID string `json:"owned_item_id"`
}

// Response payloads

type ProjectResponse struct {
	domain.Project
	Members []domain.Member `json:"members"`
}

type EventsResponse struct {
	Items []events.Entry `json:"items"`
}

func eventTypes(in []string) []events.Type {
	if len(in) == 0 {
		return nil
	}
	out := make([]events.Type, 0, len(in))
	for _, t := range in {
		out = append(out, events.Type(t))
	}
	return out
}
