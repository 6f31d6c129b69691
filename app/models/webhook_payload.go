package models

import (
	"database/sql/driver"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// WebhookPayload holds a request body byte for byte. Unlike datatypes.JSON it
// is bound as plain text, so MySQL and Postgres never reformat what was stored.
type WebhookPayload []byte

func (WebhookPayload) GormDataType() string {
	return "text"
}

func (WebhookPayload) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql":
		return "LONGTEXT"
	case "postgres":
		// json keeps the input text as-is, jsonb does not
		return "JSON"
	}
	return "TEXT"
}

func (p WebhookPayload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return string(p), nil
}

func (p *WebhookPayload) Scan(value interface{}) error {
	return (*datatypes.JSON)(p).Scan(value)
}

func (p WebhookPayload) MarshalJSON() ([]byte, error) {
	return datatypes.JSON(p).MarshalJSON()
}

func (p *WebhookPayload) UnmarshalJSON(b []byte) error {
	return (*datatypes.JSON)(p).UnmarshalJSON(b)
}
