package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logLevelFromEnv())
	logg.SetOutput(os.Stdout)
}

// LOG_LEVEL overrides the default; development runs log at info.
func logLevelFromEnv() logrus.Level {
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		if lvl, err := logrus.ParseLevel(v); err == nil {
			return lvl
		}
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "development") {
		return logrus.InfoLevel
	}
	return logrus.ErrorLevel
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	if logger == nil || err == nil {
		return
	}
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
