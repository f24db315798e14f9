package models

import "github.com/shopspring/decimal"

// NewDecimal creates a decimal from a float64, same helper the teacher
// exposes for constructing money fields from computed float values.
func NewDecimal(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// RunnerStatus is the coarse operating state of the Agent Runner process.
type RunnerStatus string

const (
	RunnerStatusRunning RunnerStatus = "running"
	RunnerStatusStopped RunnerStatus = "stopped"
)
