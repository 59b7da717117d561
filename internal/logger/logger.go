package logger

import (
	"go.uber.org/zap"
)

// New builds the process logger. Development mode gets the human-readable
// console encoder; everything else logs structured JSON.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
