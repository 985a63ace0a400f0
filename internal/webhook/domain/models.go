// Package domain defines the inbound SEOWorks event schema, its validation,
// and the orphaned-task fallback record.
package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/smallbiznis/seohub/pkg/db/pagination"
	"gorm.io/datatypes"
)

// Event types accepted on the webhook. Unknown types are acknowledged and
// logged, never rejected.
const (
	EventTaskCreated   = "task.created"
	EventTaskUpdated   = "task.updated"
	EventTaskCompleted = "task.completed"
	EventTaskCancelled = "task.cancelled"
)

// Deliverable is one published artifact attached to a task event.
type Deliverable struct {
	Type          string  `json:"type"`
	Title         string  `json:"title"`
	URL           *string `json:"url,omitempty"`
	PublishedDate *string `json:"publishedDate,omitempty"`
}

// TaskData is the vendor's task payload.
type TaskData struct {
	ExternalID     string        `json:"externalId"`
	ClientID       *string       `json:"clientId,omitempty"`
	ClientEmail    *string       `json:"clientEmail,omitempty"`
	TaskType       string        `json:"taskType"`
	Status         string        `json:"status"`
	CompletionDate *time.Time    `json:"completionDate,omitempty"`
	Deliverables   []Deliverable `json:"deliverables,omitempty"`
}

// TaskEvent is the decoded webhook envelope.
type TaskEvent struct {
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	Data      TaskData  `json:"data"`
}

// FieldError names one invalid payload field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field errors; handlers map it to a 400.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return fmt.Sprintf("invalid webhook payload: %s", strings.Join(names, ", "))
}

// rawEvent defers deliverable decoding so one malformed array entry does not
// reject an otherwise valid event.
type rawEvent struct {
	EventType string `json:"eventType"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		ExternalID     string          `json:"externalId"`
		ClientID       *string         `json:"clientId"`
		ClientEmail    *string         `json:"clientEmail"`
		TaskType       string          `json:"taskType"`
		Status         string          `json:"status"`
		CompletionDate *string         `json:"completionDate"`
		Deliverables   json.RawMessage `json:"deliverables"`
	} `json:"data"`
}

// DecodeTaskEvent parses and validates a webhook body. Required fields are
// eventType, timestamp (RFC3339), data.externalId, data.taskType and
// data.status. Malformed deliverables degrade to an empty list.
func DecodeTaskEvent(body []byte) (*TaskEvent, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: "body", Message: "malformed JSON"}}}
	}

	var fields []FieldError
	if strings.TrimSpace(raw.EventType) == "" {
		fields = append(fields, FieldError{Field: "eventType", Message: "required"})
	}

	var ts time.Time
	if strings.TrimSpace(raw.Timestamp) == "" {
		fields = append(fields, FieldError{Field: "timestamp", Message: "required"})
	} else {
		parsed, err := time.Parse(time.RFC3339, raw.Timestamp)
		if err != nil {
			fields = append(fields, FieldError{Field: "timestamp", Message: "must be RFC3339"})
		} else {
			ts = parsed
		}
	}

	if strings.TrimSpace(raw.Data.ExternalID) == "" {
		fields = append(fields, FieldError{Field: "data.externalId", Message: "required"})
	}
	if strings.TrimSpace(raw.Data.TaskType) == "" {
		fields = append(fields, FieldError{Field: "data.taskType", Message: "required"})
	}
	if strings.TrimSpace(raw.Data.Status) == "" {
		fields = append(fields, FieldError{Field: "data.status", Message: "required"})
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	event := &TaskEvent{
		EventType: strings.TrimSpace(raw.EventType),
		Timestamp: ts,
		Data: TaskData{
			ExternalID:  strings.TrimSpace(raw.Data.ExternalID),
			ClientID:    raw.Data.ClientID,
			ClientEmail: raw.Data.ClientEmail,
			TaskType:    strings.TrimSpace(raw.Data.TaskType),
			Status:      strings.TrimSpace(raw.Data.Status),
		},
	}

	if raw.Data.CompletionDate != nil {
		if parsed, err := time.Parse(time.RFC3339, *raw.Data.CompletionDate); err == nil {
			event.Data.CompletionDate = &parsed
		}
	}

	if len(raw.Data.Deliverables) > 0 {
		var deliverables []Deliverable
		if err := json.Unmarshal(raw.Data.Deliverables, &deliverables); err == nil {
			event.Data.Deliverables = deliverables
		}
	}

	return event, nil
}

// FirstDeliverable returns the first deliverable with a non-empty title.
func (d TaskData) FirstDeliverable() *Deliverable {
	for i := range d.Deliverables {
		if strings.TrimSpace(d.Deliverables[i].Title) != "" {
			return &d.Deliverables[i]
		}
	}
	return nil
}

// DeliverableTitles collects non-empty titles for the orphan audit record.
func (d TaskData) DeliverableTitles() []string {
	titles := make([]string, 0, len(d.Deliverables))
	for _, item := range d.Deliverables {
		if title := strings.TrimSpace(item.Title); title != "" {
			titles = append(titles, title)
		}
	}
	return titles
}

// Strategy names how an event was matched to a request.
type Strategy string

const (
	StrategyRequestID   Strategy = "request_id"
	StrategyLinkedTask  Strategy = "linked_task_id"
	StrategyUserRequest Strategy = "user_active_request"
	StrategySynthesized Strategy = "synthesized"
	StrategyNone        Strategy = "none"
)

// Outcome reports how an event was processed.
type Outcome struct {
	Matched   bool
	Strategy  Strategy
	RequestID snowflake.ID
}

// OrphanedTask records an event no strategy could match. Rows are append-only
// here; an operator reconciles them out of band.
type OrphanedTask struct {
	ID                snowflake.ID   `gorm:"primaryKey"`
	EventType         string         `gorm:"type:text;not null"`
	ExternalID        string         `gorm:"type:text;not null;index"`
	ClientID          *string        `gorm:"type:text"`
	ClientEmail       *string        `gorm:"type:text"`
	TaskType          string         `gorm:"type:text;not null"`
	RawPayload        datatypes.JSON `gorm:"type:jsonb"`
	DeliverableTitles pq.StringArray `gorm:"type:text[]"`
	Reason            string         `gorm:"type:text;not null"`
	Processed         bool           `gorm:"not null;default:false;index"`
	CreatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	UpdatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrphanedTask) TableName() string { return "orphaned_tasks" }

type ListOrphansRequest struct {
	PageToken string
	PageSize  int32
}

type ListOrphansResponse struct {
	pagination.PageInfo
	Tasks []OrphanedTask `json:"tasks"`
}

type Service interface {
	// Process resolves the event to a request via the ordered strategies and
	// applies the event's side effects.
	Process(ctx context.Context, event *TaskEvent) (*Outcome, error)

	// ListOrphans pages unmatched events, unprocessed first.
	ListOrphans(ctx context.Context, req ListOrphansRequest) (ListOrphansResponse, error)
}
