package cmd

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-amazon-payments/config"
)

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Log.Level))
	if err != nil {
		return err
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	return nil
}
