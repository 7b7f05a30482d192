// Package logger provides the zap-based application logger.
package logger

import "go.uber.org/zap"

// New builds a production JSON logger tagged with the service name. In the
// "dev" environment it switches to the human-readable development encoder.
func New(service, env string) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if env == "dev" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("service", service)), nil
}
