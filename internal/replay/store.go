// Package replay записывает разосланные снимки мира в BadgerDB для последующего просмотра.
package replay

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/protocol"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

const keyPrefix = "replay/"

// ErrStoreClosed - хранилище закрыто
var ErrStoreClosed = errors.New("replay store closed")

// Frame - один записанный снимок
type Frame struct {
	Tick       uint32          `json:"tick"`
	RecordedAt time.Time       `json:"recorded_at"`
	State      game.WorldState `json:"state"`
}

// SessionInfo - сводка по записи одного запуска сервера
type SessionInfo struct {
	ID        string `json:"id"`
	Frames    int    `json:"frames"`
	FirstTick uint32 `json:"first_tick"`
	LastTick  uint32 `json:"last_tick"`
}

// Store хранит кадры под ключами replay/<session>/<tick>.
// Значение - 8 байт времени записи (unix ms) и сжатая zstd полезная нагрузка пакета WorldState.
type Store struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder

	mu      sync.RWMutex
	isReady bool
}

// Open открывает хранилище в каталоге path
func Open(path string) (*Store, error) {
	return open(badger.DefaultOptions(path).WithLogger(nil))
}

// OpenInMemory открывает хранилище без записи на диск
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &Store{db: db, enc: enc, dec: dec, isReady: true}, nil
}

// Close закрывает хранилище
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

func frameKey(session string, tick uint32) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d", keyPrefix, session, tick))
}

func sessionPrefix(session string) []byte {
	return []byte(keyPrefix + session + "/")
}

// SaveFrame записывает снимок ws сессии session
func (s *Store) SaveFrame(session string, ws *game.WorldState, at time.Time) error {
	if strings.Contains(session, "/") || session == "" {
		return fmt.Errorf("недопустимый id сессии %q", session)
	}

	packet, err := protocol.SerializeWorldState(0, ws)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isReady {
		return ErrStoreClosed
	}

	value := make([]byte, 8, 8+len(packet)/2)
	binary.LittleEndian.PutUint64(value, uint64(at.UnixMilli()))
	value = s.enc.EncodeAll(packet[protocol.HeaderSize:], value)

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(frameKey(session, ws.Tick), value)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

func (s *Store) decodeFrame(value []byte) (Frame, error) {
	if len(value) < 8 {
		return Frame{}, fmt.Errorf("%w: replay frame too short", protocol.ErrMalformedPacket)
	}
	at := time.UnixMilli(int64(binary.LittleEndian.Uint64(value))).UTC()

	payload, err := s.dec.DecodeAll(value[8:], nil)
	if err != nil {
		return Frame{}, fmt.Errorf("zstd: %w", err)
	}
	ws, err := protocol.DeserializeWorldState(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Tick: ws.Tick, RecordedAt: at, State: ws}, nil
}

// Load возвращает до limit кадров сессии начиная с тика fromTick
func (s *Store) Load(session string, fromTick uint32, limit int) ([]Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isReady {
		return nil, ErrStoreClosed
	}

	var frames []Frame
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := sessionPrefix(session)
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 64, Prefix: prefix})
		defer it.Close()

		for it.Seek(frameKey(session, fromTick)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(frames) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				f, err := s.decodeFrame(val)
				if err != nil {
					return err
				}
				frames = append(frames, f)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return frames, nil
}

// Sessions перечисляет записанные сессии в порядке ключей
func (s *Store) Sessions() ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isReady {
		return nil, ErrStoreClosed
	}

	var out []SessionInfo
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(keyPrefix)})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			session, tick, ok := parseKey(it.Item().Key())
			if !ok {
				continue
			}
			if n := len(out); n > 0 && out[n-1].ID == session {
				out[n-1].Frames++
				out[n-1].LastTick = tick
				continue
			}
			out = append(out, SessionInfo{ID: session, Frames: 1, FirstTick: tick, LastTick: tick})
		}
		return nil
	})
	return out, err
}

func parseKey(key []byte) (string, uint32, bool) {
	rest := bytes.TrimPrefix(key, []byte(keyPrefix))
	i := bytes.LastIndexByte(rest, '/')
	if i <= 0 {
		return "", 0, false
	}
	tick, err := strconv.ParseUint(string(rest[i+1:]), 10, 32)
	if err != nil {
		return "", 0, false
	}
	return string(rest[:i]), uint32(tick), true
}
