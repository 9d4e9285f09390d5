// Package logging configures the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Options selects the level, format and destination of log output.
type Options struct {
	Level  string
	Format string
	Out    io.Writer
}

// New builds a logger that masks secrets in every entry before it is
// written. Output defaults to stderr so stdout stays reserved for results.
func New(opts Options) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if opts.Out != nil {
		log.SetOutput(opts.Out)
	}

	level := logrus.WarnLevel
	if opts.Level != "" {
		var err error
		level, err = logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	log.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log format: unknown format %q", opts.Format)
	}

	log.AddHook(MaskHook{})
	return log, nil
}

// WithRun tags every entry of one invocation with a fresh run id.
func WithRun(log logrus.FieldLogger, command string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"run_id":  uuid.NewString(),
		"command": command,
	})
}

// MaskHook masks secrets in the message and string fields of an entry.
type MaskHook struct{}

func (MaskHook) Levels() []logrus.Level { return logrus.AllLevels }

func (MaskHook) Fire(e *logrus.Entry) error {
	e.Message = MaskSecrets(e.Message)
	for k, v := range e.Data {
		switch val := v.(type) {
		case string:
			e.Data[k] = MaskSecrets(val)
		case error:
			if masked := MaskSecrets(val.Error()); masked != val.Error() {
				e.Data[k] = masked
			}
		}
	}
	return nil
}
