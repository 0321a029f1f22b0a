package logging

import "go.uber.org/zap"

// New creates a new zap logger for standalone tools. Anything other than
// "production" gets the human readable development encoder.
func New(env string) *zap.SugaredLogger {
	build := zap.NewDevelopment
	if env == "production" {
		build = zap.NewProduction
	}
	logger, err := build()
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	return logger.Sugar()
}
