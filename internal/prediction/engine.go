// Package prediction реализует клиентское предсказание ввода и сверку с сервером.
package prediction

import (
	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/physics"
)

const (
	// MaxHistorySize - сколько неподтверждённых вводов хранит клиент (2 секунды при 60 Гц)
	MaxHistorySize = 120
	// CorrectionThreshold - расхождение с сервером в единицах мира, после которого клиент переигрывает ввод
	CorrectionThreshold float32 = 5.0
)

// HistoryEntry - применённый локально ввод и состояние сразу после него
type HistoryEntry struct {
	Sequence  game.SequenceID
	Input     game.InputState
	Predicted game.PlayerState
}

// ReconcileResult описывает итог сверки с авторитетным состоянием
type ReconcileResult struct {
	// Corrected - предсказание разошлось больше порога и было переиграно
	Corrected bool
	// Resynced - подтверждённый ввод уже вытеснен из истории; состояние пересобрано от серверного
	Resynced bool
	// Error - расхождение предсказанной и серверной позиции на подтверждённом вводе
	Error float32
	// Replayed - сколько вводов переиграно поверх серверного состояния
	Replayed int
	// Pending - сколько вводов осталось неподтверждёнными
	Pending int
}

// Stats - накопленная статистика предсказания
type Stats struct {
	TotalInputs      uint64
	TotalCorrections uint64
	TotalResyncs     uint64
	LastError        float32
	MaxError         float32
}

// Engine хранит историю вводов одного локального игрока.
// Используется из одной горутины симуляции клиента.
type Engine struct {
	lastSeq game.SequenceID
	history []HistoryEntry
	stats   Stats
}

// NewEngine создаёт пустой движок предсказания
func NewEngine() *Engine {
	return &Engine{history: make([]HistoryEntry, 0, MaxHistorySize+1)}
}

// ApplyInput назначает вводу следующий номер (начиная с 1), применяет его к local
// и запоминает результат. Возвращает номер, под которым ввод уходит на сервер.
func (e *Engine) ApplyInput(local *game.PlayerState, input game.InputState, dt float32) game.SequenceID {
	e.lastSeq++
	physics.ApplyInput(local, input, dt)

	e.history = append(e.history, HistoryEntry{Sequence: e.lastSeq, Input: input, Predicted: *local})
	if len(e.history) > MaxHistorySize {
		n := copy(e.history, e.history[len(e.history)-MaxHistorySize:])
		e.history = e.history[:n]
	}
	e.stats.TotalInputs++
	return e.lastSeq
}

// Reconcile сверяет local с серверным состоянием, подтверждающим вводы до acked включительно.
//
// Подтверждённые вводы удаляются из истории. Если неподтверждённых не осталось,
// local принимает серверное состояние. Иначе позиция, предсказанная на подтверждённом вводе,
// сравнивается с серверной: при расхождении больше CorrectionThreshold local сбрасывается
// на серверное состояние и оставшиеся вводы переигрываются по порядку. Счёт всегда берётся с сервера.
func (e *Engine) Reconcile(server game.PlayerState, acked game.SequenceID, local *game.PlayerState, dt float32) ReconcileResult {
	var (
		boundary      HistoryEntry
		boundaryFound bool
		cut           int
	)
	for cut < len(e.history) && e.history[cut].Sequence <= acked {
		if e.history[cut].Sequence == acked {
			boundary = e.history[cut]
			boundaryFound = true
		}
		cut++
	}
	if cut > 0 {
		n := copy(e.history, e.history[cut:])
		e.history = e.history[:n]
	}

	var res ReconcileResult
	if len(e.history) == 0 {
		*local = server
		return res
	}

	switch {
	case !boundaryFound:
		res.Resynced = true
		e.stats.TotalResyncs++
	default:
		res.Error = boundary.Predicted.Position.DistanceTo(server.Position)
		e.stats.LastError = res.Error
		if res.Error > e.stats.MaxError {
			e.stats.MaxError = res.Error
		}
		if res.Error > CorrectionThreshold {
			res.Corrected = true
			e.stats.TotalCorrections++
		}
	}

	if res.Corrected || res.Resynced {
		*local = server
		for i := range e.history {
			physics.ApplyInput(local, e.history[i].Input, dt)
			e.history[i].Predicted = *local
		}
		res.Replayed = len(e.history)
	}

	local.Score = server.Score
	res.Pending = len(e.history)
	return res
}

// LastSequence возвращает номер последнего выданного ввода
func (e *Engine) LastSequence() game.SequenceID {
	return e.lastSeq
}

// HistorySize возвращает число неподтверждённых вводов
func (e *Engine) HistorySize() int {
	return len(e.history)
}

// History возвращает копию истории от старых вводов к новым
func (e *Engine) History() []HistoryEntry {
	out := make([]HistoryEntry, len(e.history))
	copy(out, e.history)
	return out
}

// Stats возвращает статистику предсказания
func (e *Engine) Stats() Stats {
	return e.stats
}

// Clear сбрасывает историю. Нумерация вводов продолжается.
func (e *Engine) Clear() {
	e.history = e.history[:0]
}
