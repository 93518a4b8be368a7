package main

import (
	"github.com/sirupsen/logrus"

	"maestro/internal/config"
	"maestro/internal/logging"
)

func newLogger(cfg *config.Config) *logrus.Logger {
	path := cfg.LogPath
	if path == "" {
		path = "maestro.log"
	}
	return logging.New(path)
}
