package log

type Level string

const (
	LevelTrace Level = "trace"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

type Config struct {
	Level  Level  `env:"LOG_LEVEL,default=info" validate:"required,oneof=trace debug info warn error fatal"`
	Format Format `env:"LOG_FORMAT,default=json" validate:"required,oneof=json console"`
}
