package logging

import (
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из строки (регистр не важен).
// Неизвестные значения дают INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Options задают, куда и с какими уровнями пишут новые логгеры.
type Options struct {
	Dir             string   // каталог для файлов логов; пусто - только консоль
	ConsoleLevel    LogLevel // минимальный уровень для консоли
	FileLevel       LogLevel // минимальный уровень для файла
	ConsoleOutput   io.Writer
	TimestampFormat string
}

// DefaultOptions возвращает настройки по умолчанию: консоль, INFO.
func DefaultOptions() Options {
	level := INFO
	if env := os.Getenv("GAME_LOG_LEVEL"); env != "" {
		level = ParseLevel(env)
	}
	return Options{
		ConsoleLevel:    level,
		FileLevel:       DEBUG,
		ConsoleOutput:   os.Stdout,
		TimestampFormat: "2006-01-02_15-04-05",
	}
}

// Logger представляет логгер отдельного компонента
type Logger struct {
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
	mu              sync.Mutex
}

var (
	optionsMu sync.RWMutex
	options   = DefaultOptions()

	// Логгер по умолчанию, используется пакетными функциями Info/Debug/...
	defaultLogger = newConsoleLogger("default", options.ConsoleOutput, options.ConsoleLevel)
)

// Configure меняет настройки для всех логгеров, созданных после вызова.
func Configure(opts Options) {
	if opts.ConsoleOutput == nil {
		opts.ConsoleOutput = os.Stdout
	}
	if opts.TimestampFormat == "" {
		opts.TimestampFormat = "2006-01-02_15-04-05"
	}

	optionsMu.Lock()
	options = opts
	optionsMu.Unlock()
}

func currentOptions() Options {
	optionsMu.RLock()
	defer optionsMu.RUnlock()
	return options
}

func newConsoleLogger(component string, w io.Writer, level LogLevel) *Logger {
	return &Logger{
		component:       component,
		consoleLogger:   log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		minConsoleLevel: level,
		minFileLevel:    ERROR + 1,
	}
}

// NewLogger создаёт логгер компонента с текущими настройками.
// Если задан каталог, логгер дополнительно пишет в файл <component>_<timestamp>.log.
func NewLogger(component string) (*Logger, error) {
	opts := currentOptions()
	logger := newConsoleLogger(component, opts.ConsoleOutput, opts.ConsoleLevel)

	if opts.Dir == "" {
		return logger, nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", opts.Dir, err)
	}

	timestamp := time.Now().Format(opts.TimestampFormat)
	filename := filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	logger.file = file
	logger.fileLogger = log.New(file, "", log.LstdFlags|log.Lmicroseconds)
	logger.minFileLevel = opts.FileLevel
	return logger, nil
}

// NewWriterLogger создаёт логгер, пишущий только в w. Удобно в тестах.
func NewWriterLogger(component string, w io.Writer, level LogLevel) *Logger {
	return newConsoleLogger(component, w, level)
}

// InitDefaultLogger пересоздаёт логгер по умолчанию с текущими настройками
func InitDefaultLogger(component string) error {
	logger, err := NewLogger(component)
	if err != nil {
		return err
	}
	defaultLogger = logger
	return nil
}

// CloseDefaultLogger закрывает файл логгера по умолчанию и все логгеры компонентов
func CloseDefaultLogger() {
	if defaultLogger != nil {
		_ = defaultLogger.Close()
	}
	_ = GetLoggerManager().CloseAll()
}

// Component возвращает имя компонента
func (l *Logger) Component() string {
	return l.component
}

// SetLevels меняет минимальные уровни логгера
func (l *Logger) SetLevels(console, file LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minConsoleLevel = console
	if l.fileLogger != nil {
		l.minFileLevel = file
	}
}

// Enabled сообщает, будет ли записано сообщение уровня level хоть куда-нибудь
func (l *Logger) Enabled(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.minConsoleLevel || (l.fileLogger != nil && level >= l.minFileLevel)
}

// Close закрывает файл логов, если он был открыт
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

func (l *Logger) Trace(format string, args ...interface{}) { l.logf(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.logf(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.logf(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.logf(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.logf(ERROR, format, args...) }

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	toConsole := level >= l.minConsoleLevel
	toFile := l.fileLogger != nil && level >= l.minFileLevel
	if !toConsole && !toFile {
		return
	}

	message := fmt.Sprintf("[%s] [%s] %s", level.String(), l.component, fmt.Sprintf(format, args...))
	if toFile {
		l.fileLogger.Println(message)
	}
	if toConsole {
		l.consoleLogger.Println(message)
	}
}

// Trace логирует сообщение уровня TRACE в логгер по умолчанию
func Trace(format string, args ...interface{}) { defaultLogger.logf(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG в логгер по умолчанию
func Debug(format string, args ...interface{}) { defaultLogger.logf(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO в логгер по умолчанию
func Info(format string, args ...interface{}) { defaultLogger.logf(INFO, format, args...) }

// Warn логирует сообщение уровня WARN в логгер по умолчанию
func Warn(format string, args ...interface{}) { defaultLogger.logf(WARN, format, args...) }

// Error логирует сообщение уровня ERROR в логгер по умолчанию
func Error(format string, args ...interface{}) { defaultLogger.logf(ERROR, format, args...) }

// HexDump создает hex дамп данных
func HexDump(data []byte) string {
	if len(data) == 0 {
		return "No data"
	}

	// Ограничиваем размер дампа до 256 байт
	size := len(data)
	if size > 256 {
		size = 256
	}

	return hex.Dump(data[:size])
}

// LogProtocolError логирует ошибку разбора пакета вместе с сырыми байтами
func LogProtocolError(logger *Logger, connID string, err error, data []byte) {
	logger.Warn("Protocol error from %s: %v", connID, err)
	if len(data) > 0 && logger.Enabled(DEBUG) {
		logger.Debug("Raw data (%d bytes):\n%s", len(data), HexDump(data))
	}
}
