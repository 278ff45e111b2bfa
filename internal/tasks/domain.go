package tasks

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the requested task does not exist.
	ErrNotFound = errors.New("tasks: not found")
	// ErrNothingToUpdate indicates an update request carried no fields.
	ErrNothingToUpdate = errors.New("tasks: nothing to update")
)

// Task statuses used by the tracker board.
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

// DateLayout is the wire and storage layout of calendar dates.
const DateLayout = "2006-01-02"

// Task is one row of the daily tracker.
type Task struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Product          string    `json:"product"`
	IssueType        string    `json:"issueType"`
	Status           string    `json:"status"`
	Priority         string    `json:"priority"`
	Developer        string    `json:"developer"`
	UATPerson        string    `json:"uatPerson"`
	ProductionPerson string    `json:"productionPerson"`
	ReportedDate     string    `json:"reportedDate,omitempty"`
	FixedDate        string    `json:"fixedDate,omitempty"`
	ClosedDate       string    `json:"closedDate,omitempty"`
	TaskDate         string    `json:"taskDate"`
	TimeInfo         string    `json:"timeInfo"`
	CreatedBy        int64     `json:"createdBy,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Title            string `json:"title" validate:"required,max=255"`
	Description      string `json:"description"`
	Product          string `json:"product" validate:"required,max=100"`
	IssueType        string `json:"issueType" validate:"required,max=100"`
	Priority         string `json:"priority" validate:"omitempty,max=50"`
	Developer        string `json:"developer" validate:"omitempty,max=255"`
	UATPerson        string `json:"uatPerson" validate:"omitempty,max=255"`
	ProductionPerson string `json:"productionPerson" validate:"omitempty,max=255"`
	ReportedDate     string `json:"reportedDate" validate:"omitempty,datetime=2006-01-02"`
	FixedDate        string `json:"fixedDate" validate:"omitempty,datetime=2006-01-02"`
	ClosedDate       string `json:"closedDate" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateTaskRequest is a partial update; nil fields are left untouched.
// An empty date string clears the date.
type UpdateTaskRequest struct {
	Title            *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description      *string `json:"description"`
	Product          *string `json:"product" validate:"omitempty,min=1,max=100"`
	IssueType        *string `json:"issueType" validate:"omitempty,min=1,max=100"`
	Status           *string `json:"status" validate:"omitempty,min=1,max=50"`
	Priority         *string `json:"priority" validate:"omitempty,max=50"`
	Developer        *string `json:"developer" validate:"omitempty,max=255"`
	UATPerson        *string `json:"uatPerson" validate:"omitempty,max=255"`
	ProductionPerson *string `json:"productionPerson" validate:"omitempty,max=255"`
	ReportedDate     *string `json:"reportedDate" validate:"omitempty,datetime=2006-01-02"`
	FixedDate        *string `json:"fixedDate" validate:"omitempty,datetime=2006-01-02"`
	ClosedDate       *string `json:"closedDate" validate:"omitempty,datetime=2006-01-02"`
}

// Fields returns the column assignments carried by the request.
func (r UpdateTaskRequest) Fields() map[string]any {
	out := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			out[col] = *v
		}
	}
	setDate := func(col string, v *string) {
		if v == nil {
			return
		}
		if *v == "" {
			out[col] = nil
			return
		}
		out[col] = *v
	}
	set("title", r.Title)
	set("description", r.Description)
	set("product", r.Product)
	set("issue_type", r.IssueType)
	set("status", r.Status)
	set("priority", r.Priority)
	set("developer", r.Developer)
	set("uat_person", r.UATPerson)
	set("production_person", r.ProductionPerson)
	setDate("reported_date", r.ReportedDate)
	setDate("fixed_date", r.FixedDate)
	setDate("closed_date", r.ClosedDate)
	return out
}

// ListFilters narrows GET /api/tasks. Empty values match everything.
type ListFilters struct {
	DateFrom  string
	DateTo    string
	Product   string
	IssueType string
	Status    string
}

// NewListFilters normalises raw query values; "all" means no filter.
func NewListFilters(dateFrom, dateTo, product, issueType, status string) ListFilters {
	return ListFilters{
		DateFrom:  strings.TrimSpace(dateFrom),
		DateTo:    strings.TrimSpace(dateTo),
		Product:   anyValue(product),
		IssueType: anyValue(issueType),
		Status:    anyValue(status),
	}
}

func anyValue(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}

// StatusCount is one bucket of the dashboard status breakdown.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}
