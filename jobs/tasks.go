package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskHandoverPublished records a newly saved shift handover.
	TaskHandoverPublished = "handover:published"
	// TaskUsersIdleLogout marks long idle Online users as Offline.
	TaskUsersIdleLogout = "users:idle-logout"
)

// IdleLogoutSpec is the cron schedule of TaskUsersIdleLogout.
const IdleLogoutSpec = "*/15 * * * *"

// HandoverPublishedPayload identifies the handover that was saved.
type HandoverPublishedPayload struct {
	HandoverID int64     `json:"handoverId"`
	Name       string    `json:"name"`
	ShiftFrom  string    `json:"shiftFrom"`
	ShiftTo    string    `json:"shiftTo"`
	Points     int       `json:"points"`
	CreatedBy  int64     `json:"createdBy"`
	SavedAt    time.Time `json:"savedAt"`
}

// MaxIdleWindow bounds the idle window a payload may request.
const MaxIdleWindow = 90 * 24 * time.Hour

// IdleLogoutPayload overrides the configured idle window when positive.
type IdleLogoutPayload struct {
	IdleForSeconds int64 `json:"idleForSeconds,omitempty"`
}

// NewHandoverPublishedTask constructs an Asynq task.
func NewHandoverPublishedTask(payload HandoverPublishedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHandoverPublished, data), nil
}

// NewIdleLogoutTask constructs the idle logout task. A zero idleFor uses the
// worker's configured window.
func NewIdleLogoutTask(idleFor time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdleLogoutPayload{IdleForSeconds: int64(idleFor / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUsersIdleLogout, data), nil
}
