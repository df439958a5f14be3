package logs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tgifai/cronturn/internal/consts"
)

type Options struct {
	Level      string
	Format     string
	Output     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

var logger Logger = newLogrusLogger(logrus.New(), "stdout", "")

func DefaultLogger() Logger {
	return logger
}

// Init replaces the global logger. It is not safe to call concurrently with
// logging.
func Init(opts Options) error {
	output := strings.ToLower(strings.TrimSpace(opts.Output))
	if output == "" {
		output = "stdout"
	}
	w, err := buildWriter(opts, output)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetOutput(w)
	logger = newLogrusLogger(log, output, opts.Format)
	log.SetLevel(parseLogLevel(opts.Level))
	return nil
}

func Warn(format string, v ...interface{})  { logger.Warn(format, v...) }
func Error(format string, v ...interface{}) { logger.Error(format, v...) }

func CtxDebug(ctx context.Context, format string, v ...interface{}) {
	logger.CtxDebug(ctx, format, v...)
}

func CtxInfo(ctx context.Context, format string, v ...interface{}) {
	logger.CtxInfo(ctx, format, v...)
}

func CtxWarn(ctx context.Context, format string, v ...interface{}) {
	logger.CtxWarn(ctx, format, v...)
}

func CtxError(ctx context.Context, format string, v ...interface{}) {
	logger.CtxError(ctx, format, v...)
}

// WithJob tags ctx so every line logged through it carries the cron job id.
// A log id is attached as well when ctx does not have one yet.
func WithJob(ctx context.Context, jobID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logIDFrom(ctx) == "" {
		ctx = withLogID(ctx, uuid.New().String())
	}
	return context.WithValue(ctx, consts.CtxKeyJobID, jobID)
}

// WithSession tags ctx with the session key a run is bound to.
func WithSession(ctx context.Context, sessionKey string) context.Context {
	return context.WithValue(ctx, consts.CtxKeySessionKey, sessionKey)
}

func withLogID(ctx context.Context, logID string) context.Context {
	return context.WithValue(ctx, consts.CtxKeyLogID, logID)
}

func logIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(consts.CtxKeyLogID).(string)
	return id
}

type logrusLogger struct {
	log *logrus.Logger
}

func newLogrusLogger(log *logrus.Logger, output, format string) *logrusLogger {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&lineFormatter{color: output != "file" && !color.NoColor})
	}
	return &logrusLogger{log: log}
}

var logrusLevels = [...]logrus.Level{
	DebugLevel: logrus.DebugLevel,
	InfoLevel:  logrus.InfoLevel,
	WarnLevel:  logrus.WarnLevel,
	ErrorLevel: logrus.ErrorLevel,
	FatalLevel: logrus.FatalLevel,
}

func (l *logrusLogger) SetLevel(level LogLevel) {
	if level >= 0 && int(level) < len(logrusLevels) {
		l.log.SetLevel(logrusLevels[level])
	}
}

func (l *logrusLogger) Debug(format string, v ...interface{}) { l.log.Debugf(format, v...) }
func (l *logrusLogger) Info(format string, v ...interface{})  { l.log.Infof(format, v...) }
func (l *logrusLogger) Warn(format string, v ...interface{})  { l.log.Warnf(format, v...) }
func (l *logrusLogger) Error(format string, v ...interface{}) { l.log.Errorf(format, v...) }
func (l *logrusLogger) Fatal(format string, v ...interface{}) { l.log.Fatalf(format, v...) }

func (l *logrusLogger) CtxDebug(ctx context.Context, format string, v ...interface{}) {
	l.log.WithContext(ctx).Debugf(format, v...)
}

func (l *logrusLogger) CtxInfo(ctx context.Context, format string, v ...interface{}) {
	l.log.WithContext(ctx).Infof(format, v...)
}

func (l *logrusLogger) CtxWarn(ctx context.Context, format string, v ...interface{}) {
	l.log.WithContext(ctx).Warnf(format, v...)
}

func (l *logrusLogger) CtxError(ctx context.Context, format string, v ...interface{}) {
	l.log.WithContext(ctx).Errorf(format, v...)
}

func (l *logrusLogger) CtxFatal(ctx context.Context, format string, v ...interface{}) {
	l.log.WithContext(ctx).Fatalf(format, v...)
}

// parseLogLevel falls back to info for empty or unknown names.
func parseLogLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func buildWriter(opts Options, output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "file", "both":
		if strings.TrimSpace(opts.File) == "" {
			return nil, fmt.Errorf("log file is required when output includes file")
		}
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir failed: %w", err)
		}
		rotate := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100,
			MaxBackups: max(opts.MaxBackups, 0),
			MaxAge:     max(opts.MaxAge, 0),
			Compress:   opts.Compress,
		}
		if opts.MaxSize > 0 {
			rotate.MaxSize = opts.MaxSize
		}
		if output == "file" {
			return rotate, nil
		}
		return &dualWriter{stdout: os.Stdout, file: rotate}, nil
	default:
		return nil, fmt.Errorf("unsupported log output: %s", output)
	}
}

// dualWriter mirrors lines to stdout and a plain-text file.
type dualWriter struct {
	stdout io.Writer
	file   io.Writer
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func (w *dualWriter) Write(p []byte) (int, error) {
	if _, err := w.stdout.Write(p); err != nil {
		return 0, err
	}
	if _, err := w.file.Write(ansiPattern.ReplaceAll(p, nil)); err != nil {
		return 0, err
	}
	return len(p), nil
}

var levelColors = map[logrus.Level]*color.Color{
	logrus.DebugLevel: color.New(color.FgCyan),
	logrus.InfoLevel:  color.New(color.FgGreen),
	logrus.WarnLevel:  color.New(color.FgYellow),
	logrus.ErrorLevel: color.New(color.FgRed),
	logrus.FatalLevel: color.New(color.FgRed),
	logrus.PanicLevel: color.New(color.FgRed),
}

// lineFormatter renders "LEVEL time dir/file.go:line logid job=.. session=.. msg".
type lineFormatter struct {
	color bool
}

func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	level := strings.ToUpper(entry.Level.String())
	if c, ok := levelColors[entry.Level]; ok && f.color {
		level = c.Sprint(level)
	}

	// frames between the caller and Format differ by one for WithContext
	skip := 9
	if entry.Context != nil {
		skip = 8
	}
	_, file, line, ok := runtime.Caller(skip)
	if ok {
		file = filepath.Base(filepath.Dir(file)) + "/" + filepath.Base(file)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s:%d %s", level, entry.Time.Format("2006-01-02 15:04:05,000"), file, line, logIDFrom(entry.Context))
	if entry.Context != nil {
		if jobID, _ := entry.Context.Value(consts.CtxKeyJobID).(string); jobID != "" {
			b.WriteString(" job=" + jobID)
		}
		if key, _ := entry.Context.Value(consts.CtxKeySessionKey).(string); key != "" {
			b.WriteString(" session=" + key)
		}
	}
	b.WriteString(" " + entry.Message + "\n")
	return []byte(b.String()), nil
}
