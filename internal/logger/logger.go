package logger

import (
	"go.uber.org/zap"
)

// New builds the process logger. Development mode gets the console encoder,
// everything else the production JSON encoder.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		cfg := zap.NewDevelopmentConfig()
		return cfg.Build()
	}
	return zap.NewProduction()
}
