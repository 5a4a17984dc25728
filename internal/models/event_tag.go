package models

// EventTag links a persisted event (surrogate id) to an upstream tag id.
// Rows are insert-only; duplicate pairs are ignored at write time.
type EventTag struct {
	EventID uint  `gorm:"primaryKey;autoIncrement:false"`
	TagID   int64 `gorm:"primaryKey;autoIncrement:false"`
}

func (EventTag) TableName() string {
	return "polymarket_event_tags"
}
