// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type ItemID string
type SourceID string
type EngagementID string
type UserID string

func NewItemID() ItemID {
	return ItemID(uuid.New().String())
}

func NewSourceID() SourceID {
	return SourceID(uuid.New().String())
}

func NewEngagementID() EngagementID {
	return EngagementID(uuid.New().String())
}
