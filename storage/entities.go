package storage

import (
	"time"

	"github.com/yush1006/todo/domain"
)

const (
	EdmInt64    = "Edm.Int64"
	EdmDateTime = "Edm.DateTime"
)

// Entity represents base table entity keys.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

// taskEntity is a task row: PartitionKey is the owner, RowKey the task id.
type taskEntity struct {
	Entity
	Text            string     `json:"Text"`
	Completed       bool       `json:"Completed"`
	CreatedAt       time.Time  `json:"CreatedAt"`
	CreatedAtType   string     `json:"CreatedAt@odata.type,omitempty"`
	CompletedAt     *time.Time `json:"CompletedAt,omitempty"`
	CompletedAtType string     `json:"CompletedAt@odata.type,omitempty"`
	Order           int64      `json:"Order,string"`
	OrderType       string     `json:"Order@odata.type,omitempty"`
}

// orderUpdate merges a new order into an existing row.
type orderUpdate struct {
	Entity
	Order     int64  `json:"Order,string"`
	OrderType string `json:"Order@odata.type"`
}

func (e taskEntity) toDomain() domain.Task {
	t := domain.Task{
		ID:        e.RowKey,
		OwnerID:   e.PartitionKey,
		Text:      e.Text,
		Completed: e.Completed,
		CreatedAt: e.CreatedAt.UTC(),
		Order:     e.Order,
	}
	if e.Completed && e.CompletedAt != nil {
		ts := e.CompletedAt.UTC()
		t.CompletedAt = &ts
	}
	return t
}

func taskEntityFrom(t domain.Task) taskEntity {
	ent := taskEntity{
		Entity:        Entity{PartitionKey: t.OwnerID, RowKey: t.ID},
		Text:          t.Text,
		Completed:     t.Completed,
		CreatedAt:     t.CreatedAt.UTC(),
		CreatedAtType: EdmDateTime,
		Order:         t.Order,
		OrderType:     EdmInt64,
	}
	if t.Completed && t.CompletedAt != nil {
		ts := t.CompletedAt.UTC()
		ent.CompletedAt = &ts
		ent.CompletedAtType = EdmDateTime
	}
	return ent
}
