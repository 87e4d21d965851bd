package logging

import (
	"fmt"
	"sort"
	"sync"
)

// Имена компонентов, под которыми пишут пакеты сервера и клиента
const (
	ComponentNetwork   = "network"
	ComponentServer    = "server"
	ComponentClient    = "client"
	ComponentStorage   = "storage"
	ComponentEventBus  = "eventbus"
	ComponentReplay    = "replay"
	ComponentAPI       = "api"
	ComponentTelemetry = "telemetry"
)

// LoggerManager хранит по одному логгеру на компонент
type LoggerManager struct {
	mu      sync.Mutex
	loggers map[string]*Logger
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{loggers: make(map[string]*Logger)}
	})
	return globalManager
}

// GetLogger возвращает логгер компонента, создавая его при первом обращении
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if logger, ok := lm.loggers[component]; ok {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("create logger %s: %w", component, err)
	}
	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger возвращает логгер компонента; если файл лога не открылся - консольный
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err == nil {
		return logger
	}
	opts := currentOptions()
	fallback := newConsoleLogger(component, opts.ConsoleOutput, opts.ConsoleLevel)
	fallback.Warn("Файловый лог недоступен: %v", err)
	return fallback
}

// CloseAll закрывает файлы всех логгеров и забывает их
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var firstErr error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close logger %s: %w", component, err)
		}
	}
	lm.loggers = make(map[string]*Logger)
	return firstErr
}

// ListComponents возвращает отсортированный список компонентов
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// SetLogLevel меняет уровни уже созданного логгера компонента
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.Lock()
	logger, ok := lm.loggers[component]
	lm.mu.Unlock()

	if !ok {
		return fmt.Errorf("logger for component %s not found", component)
	}
	logger.SetLevels(consoleLevel, fileLevel)
	return nil
}

// GetComponentLogger возвращает логгер компонента из глобального менеджера
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetNetworkLogger() *Logger   { return GetComponentLogger(ComponentNetwork) }
func GetServerLogger() *Logger    { return GetComponentLogger(ComponentServer) }
func GetClientLogger() *Logger    { return GetComponentLogger(ComponentClient) }
func GetStorageLogger() *Logger   { return GetComponentLogger(ComponentStorage) }
func GetEventBusLogger() *Logger  { return GetComponentLogger(ComponentEventBus) }
func GetReplayLogger() *Logger    { return GetComponentLogger(ComponentReplay) }
func GetAPILogger() *Logger       { return GetComponentLogger(ComponentAPI) }
func GetTelemetryLogger() *Logger { return GetComponentLogger(ComponentTelemetry) }
