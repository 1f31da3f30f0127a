package logger

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/errors"
	libLog "github.com/ltick/tick-log"
)

var (
	errNew             = "logger: new '%s' logger error"
	errInvalidLogType  = "logger: invalid log type '%s'"
	errInvalidLevel    = "logger: invalid log level '%s'"
	errInvalidWriter   = "logger: invalid log writer '%s'"
	errTargetConfigure = "logger: configure '%s' target error"
)

// Config describes one named logger and its single target.
type Config struct {
	Name            string
	Type            string // console or file
	Writer          string // the writer name of console target (stdout, stderr, discard)
	FileName        string
	FileRotate      bool
	FileBackupCount int64
	MaxLevel        string
	Formatter       string
}

// Formatter describes the formatter of a log message.
type Formatter int

const (
	FormatterDefault Formatter = iota
	FormatterRaw
	FormatterSys
)

var FormatterNames = map[Formatter]string{
	FormatterDefault: "Default",
	FormatterRaw:     "Raw",
	FormatterSys:     "Sys",
}

func (f Formatter) String() string {
	if name, ok := FormatterNames[f]; ok {
		return name
	}
	return FormatterNames[FormatterDefault]
}

func StringToFormatter(name string) Formatter {
	for formatter, formatterName := range FormatterNames {
		if strings.ToLower(name) == strings.ToLower(formatterName) {
			return formatter
		}
	}
	return FormatterDefault
}

// Writer describes the writer of a console target.
type Writer int

const (
	WriterUnknown Writer = iota
	WriterStdout
	WriterStderr
	WriterDiscard
)

var WriterNames = map[Writer]string{
	WriterUnknown: "unknown",
	WriterStdout:  "stdout",
	WriterStderr:  "stderr",
	WriterDiscard: "discard",
}

func (w Writer) String() string {
	if name, ok := WriterNames[w]; ok {
		return name
	}
	return WriterNames[WriterUnknown]
}

func StringToWriter(name string) Writer {
	for writer, writerName := range WriterNames {
		if writerName == strings.ToLower(name) {
			return writer
		}
	}
	return WriterUnknown
}

// Type describes the target type of a logger.
type Type int

const (
	TypeUnknown Type = iota
	TypeFile
	TypeConsole
)

var TypeNames = map[Type]string{
	TypeUnknown: "unknown",
	TypeFile:    "file",
	TypeConsole: "console",
}

func (t Type) String() string {
	if name, ok := TypeNames[t]; ok {
		return name
	}
	return TypeNames[TypeUnknown]
}

func StringToType(name string) Type {
	for typ, typeName := range TypeNames {
		if typeName == strings.ToLower(name) {
			return typ
		}
	}
	return TypeUnknown
}

// Level describes the level of a log message.
type Level int

// RFC5424 log message levels.
const (
	LevelEmergency Level = iota
	LevelAlert
	LevelCritical
	LevelError
	LevelWarning
	LevelNotice
	LevelInfo
	LevelDebug
)

var LevelNames = map[Level]string{
	LevelDebug:     "debug",
	LevelInfo:      "info",
	LevelNotice:    "notice",
	LevelWarning:   "warning",
	LevelError:     "error",
	LevelCritical:  "critical",
	LevelAlert:     "alert",
	LevelEmergency: "emergency",
}

func (l Level) String() string {
	if name, ok := LevelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLevel maps a level name to a Level. An empty name is LevelInfo.
func ParseLevel(name string) (Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return LevelInfo, nil
	}
	for level, levelName := range LevelNames {
		if levelName == name {
			return level, nil
		}
	}
	return LevelInfo, errors.NotValidf(errInvalidLevel, name)
}

func (l Level) libLevel() libLog.Level {
	switch l {
	case LevelEmergency:
		return libLog.LevelEmergency
	case LevelAlert:
		return libLog.LevelAlert
	case LevelCritical:
		return libLog.LevelCritical
	case LevelError:
		return libLog.LevelError
	case LevelWarning:
		return libLog.LevelWarning
	case LevelNotice:
		return libLog.LevelNotice
	case LevelInfo:
		return libLog.LevelInfo
	default:
		return libLog.LevelDebug
	}
}

// Logger is a named tick-log logger with one opened target.
type Logger struct {
	name     string
	maxLevel Level
	logger   *libLog.Logger
}

// New builds and opens the logger described by c.
func New(c *Config) (*Logger, error) {
	if c == nil {
		c = &Config{Name: "soa", Type: "console", Writer: "stdout"}
	}
	maxLevel, err := ParseLevel(c.MaxLevel)
	if err != nil {
		return nil, errors.Annotatef(err, errNew, c.Name)
	}
	target, err := newTarget(c)
	if err != nil {
		return nil, errors.Annotatef(err, errNew, c.Name)
	}
	l := libLog.NewLogger()
	l.Targets = append(l.Targets, target)
	l.MaxLevel = maxLevel.libLevel()
	switch StringToFormatter(c.Formatter) {
	case FormatterRaw:
		l.Formatter = RawLogFormatter()
	case FormatterSys:
		l.Formatter = SysLogFormatter()
	default:
		l.Formatter = DefaultLogFormatter()
	}
	l.Open()
	return &Logger{name: c.Name, maxLevel: maxLevel, logger: l}, nil
}

func newTarget(c *Config) (libLog.Target, error) {
	switch StringToType(c.Type) {
	case TypeFile:
		fileName, err := filepath.Abs(c.FileName)
		if err != nil {
			return nil, errors.Annotatef(err, errTargetConfigure, c.Name)
		}
		backupCount := c.FileBackupCount
		if backupCount <= 0 {
			backupCount = 10
		}
		targetConfig, err := json.Marshal(map[string]interface{}{
			"FileName":    fileName,
			"Rotate":      c.FileRotate,
			"BackupCount": backupCount,
			"MaxBytes":    1 << 22,
		})
		if err != nil {
			return nil, errors.Annotatef(err, errTargetConfigure, c.Name)
		}
		fileTarget := libLog.NewFileTarget()
		if err := json.Unmarshal(targetConfig, fileTarget); err != nil {
			return nil, errors.Annotatef(err, errTargetConfigure, c.Name)
		}
		return fileTarget, nil
	case TypeConsole:
		writer := StringToWriter(c.Writer)
		if c.Writer == "" {
			writer = WriterStdout
		}
		if writer == WriterUnknown {
			return nil, errors.NotValidf(errInvalidWriter, c.Writer)
		}
		targetConfig := fmt.Sprintf(`{"WriterName":%q}`, writer.String())
		consoleTarget := libLog.NewConsoleTarget()
		if err := json.Unmarshal([]byte(targetConfig), consoleTarget); err != nil {
			return nil, errors.Annotatef(err, errTargetConfigure, c.Name)
		}
		return consoleTarget, nil
	default:
		return nil, errors.NotValidf(errInvalidLogType, c.Type)
	}
}

func (l *Logger) Name() string {
	return l.name
}

func (l *Logger) MaxLevel() Level {
	return l.maxLevel
}

func (l *Logger) Debug(format string, a ...interface{}) {
	l.logger.Debug(format, a...)
}

func (l *Logger) Info(format string, a ...interface{}) {
	l.logger.Info(format, a...)
}

func (l *Logger) Notice(format string, a ...interface{}) {
	l.logger.Notice(format, a...)
}

func (l *Logger) Warning(format string, a ...interface{}) {
	l.logger.Warning(format, a...)
}

func (l *Logger) Error(format string, a ...interface{}) {
	l.logger.Error(format, a...)
}

// Close flushes and closes the target.
func (l *Logger) Close() {
	l.logger.Close()
}

func DefaultLogFormatter() libLog.Formatter {
	return func(l *libLog.Logger, e *libLog.Entry) string {
		return fmt.Sprintf("%s|%s|%v%v", e.Time.Format(time.RFC3339), e.Level, e.Message, e.CallStack)
	}
}

func RawLogFormatter() libLog.Formatter {
	return func(l *libLog.Logger, e *libLog.Entry) string {
		return fmt.Sprintf("%v%v", e.Message, e.CallStack)
	}
}

func SysLogFormatter() libLog.Formatter {
	return func(l *libLog.Logger, e *libLog.Entry) string {
		return fmt.Sprintf(`%s %s`, e.Time.Format("2006/01/02 15:04:05"), e.Message)
	}
}
