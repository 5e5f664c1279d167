package models

// StatusCode is the console glyph shown next to a device or command in summaries.
type StatusCode string

const (
	StatusSucceeded StatusCode = "✅"
	StatusFailed    StatusCode = "❌"
	StatusBailed    StatusCode = "🕕"
	StatusBlocked   StatusCode = "⛔"
	StatusSkipped   StatusCode = "␡"
	StatusUnknown   StatusCode = "❓"
)
