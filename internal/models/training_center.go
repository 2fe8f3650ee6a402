package models

import "time"

// TrainingCenterStatus enumerates center lifecycle states.
type TrainingCenterStatus string

const (
	TrainingCenterStatusActive    TrainingCenterStatus = "ACTIVE"
	TrainingCenterStatusInactive  TrainingCenterStatus = "INACTIVE"
	TrainingCenterStatusSuspended TrainingCenterStatus = "SUSPENDED"
	TrainingCenterStatusDeleted   TrainingCenterStatus = "DELETED"
)

// TrainingCenter is a physical or organisational unit that runs batches.
type TrainingCenter struct {
	ID        string               `db:"id" json:"id"`
	Code      string               `db:"code" json:"code"`
	Name      string               `db:"name" json:"name"`
	Email     *string              `db:"email" json:"email,omitempty"`
	Phone     *string              `db:"phone" json:"phone,omitempty"`
	Address   *string              `db:"address" json:"address,omitempty"`
	Status    TrainingCenterStatus `db:"status" json:"status"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt time.Time            `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time           `db:"deleted_at" json:"deleted_at,omitempty"`
}
