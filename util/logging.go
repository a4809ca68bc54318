package util

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogOptions struct {
	// Level is a logrus level name. Defaults to info.
	Level string
	// File, if set, additionally writes rotated logs to this path.
	File string
	// Caller adds the calling file and function to each line.
	Caller bool
}

// SetupLogging configures the standard logrus logger.
func SetupLogging(o LogOptions) error {
	level := log.InfoLevel
	if o.Level != "" {
		l, err := log.ParseLevel(o.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", o.Level, err)
		}
		level = l
	}
	log.SetLevel(level)

	f := &formatter.Formatter{
		TimestampFormat: "2006-01-02 15:04:05",
		CallerFirst:     true,
	}
	if o.Caller {
		f.CustomCallerFormatter = func(fr *runtime.Frame) string {
			s := strings.Split(fr.Function, ".")
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(fr.File), fr.Line, s[len(s)-1])
		}
		log.SetReportCaller(true)
	}
	log.SetFormatter(f)

	writers := []io.Writer{os.Stderr}
	if o.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   o.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100, // MiB
			MaxAge:     7,
			MaxBackups: 3,
		})
	}
	log.SetOutput(io.MultiWriter(writers...))
	return nil
}
