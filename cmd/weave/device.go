package main

import (
	"log/slog"
	"strings"
)

// consoleDevice is the "console" device sink: it logs channel changes.
type consoleDevice struct {
	logger *slog.Logger
	last   string
}

func (d *consoleDevice) Write(channels []bool) error {
	var sb strings.Builder
	for _, on := range channels {
		if on {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	if state := sb.String(); state != d.last {
		d.last = state
		d.logger.Info("device", "name", "console", "channels", state)
	}
	return nil
}
