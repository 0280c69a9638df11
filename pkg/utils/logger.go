package utils

import "go.uber.org/zap"

// ServiceName is attached to every log entry as the "service" field.
const ServiceName = "movierec"

// loggerConfig returns the development config (console, debug level) when debug is true and
// the production config (JSON, info level) otherwise. Both write to stderr so stdout stays
// free for command output.
func loggerConfig(debug bool) zap.Config {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg
}

// NewLogger returns a zap logger writing to stderr.
func NewLogger(debug bool) (*zap.Logger, error) {
	return loggerConfig(debug).Build(zap.Fields(zap.String("service", ServiceName)))
}
