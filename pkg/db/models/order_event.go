package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OrderEvent is the append-only audit trail of every order transition and
// side effect. Rows are never updated or deleted.
type OrderEvent struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	Action    string          `gorm:"column:action;not null"`
	ActorID   *uuid.UUID      `gorm:"column:actor_id;type:uuid"`
	Metadata  json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
