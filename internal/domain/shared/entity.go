package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is anything persisted under its own UUID.
type Entity interface {
	GetID() uuid.UUID
}

// BaseEntity carries the identity and audit timestamps shared by every row
// in the settlement schema.
type BaseEntity struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

func (e *BaseEntity) GetID() uuid.UUID { return e.ID }

// Touch stamps UpdatedAt; call it on every state transition.
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}
