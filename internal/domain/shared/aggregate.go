package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is an entity that records the events raised by its own
// transitions until the application layer drains them after commit.
type AggregateRoot interface {
	Entity
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot adds an optimistic version counter and the pending event list.
type BaseAggregateRoot struct {
	BaseEntity
	Version int           `gorm:"not null;default:1"`
	pending []DomainEvent `gorm:"-"`
	stored  int           `gorm:"-"`
}

func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// IncrementVersion bumps the persisted version on every transition.
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// StoredVersion is the version the store held when the aggregate was loaded or
// last saved. Zero means the aggregate has never been written.
func (a *BaseAggregateRoot) StoredVersion() int {
	return a.stored
}

// MarkStored records the current version as the one held by the store.
// Repositories call it after every load and every successful write.
func (a *BaseAggregateRoot) MarkStored() {
	a.stored = a.Version
}

func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.pending
}

func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.pending = nil
}

// CompanyAggregateRoot is an aggregate that lives in one company's books.
// Certificates and periodic returns are both scoped this way.
type CompanyAggregateRoot struct {
	BaseAggregateRoot
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index"`
}

func NewCompanyAggregateRoot(companyID uuid.UUID) CompanyAggregateRoot {
	return CompanyAggregateRoot{BaseAggregateRoot: NewBaseAggregateRoot(), CompanyID: companyID}
}
