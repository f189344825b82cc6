package cliconfig

import (
	"io"

	"github.com/arloliu/go-hl7/logger"
)

// NewLogger creates the logger selected by LogLevel and LogFormat, writing to w.
func (c *Config) NewLogger(w io.Writer) logger.Logger {
	level := logger.ParseLevel(c.LogLevel)

	switch c.LogFormat {
	case LogFormatZerolog:
		return logger.NewZerolog(level, w)
	case LogFormatConsole:
		return logger.NewSlogWithOptions(level, logger.SlogOptions{Output: w, Console: true})
	default:
		return logger.NewSlogWithOptions(level, logger.SlogOptions{Output: w})
	}
}
