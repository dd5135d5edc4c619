package domain

import "time"

type TaskStatus string

const (
	TaskStatusNew        TaskStatus = "new"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusFailed     TaskStatus = "failed"
)

// PaymentTask is the scheduling row claimed by workers. One task per payment.
type PaymentTask struct {
	ID          int64
	PaymentID   int64
	Status      TaskStatus
	Attempts    int
	LastError   *string
	NextRetryAt *time.Time
	LockedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
