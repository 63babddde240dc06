package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeWarmCache  TaskType = "warm_cache"
	TaskTypeSweepCache TaskType = "sweep_cache"
)

// TaskInterface is a unit of background work. Failed tasks are logged and dropped;
// the next scheduler tick produces fresh ones.
type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetPresetName() string
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID         string
	Type       TaskType
	PresetName string
	StartedAt  *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetPresetName() string {
	return t.PresetName
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, presetName string) Task {
	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		PresetName: presetName,
	}
}
