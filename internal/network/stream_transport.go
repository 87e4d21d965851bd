package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/annel0/coin-collector/internal/logging"
)

// StreamTransport реализует Transport поверх net.Conn (TCP или KCP-сессия в потоковом режиме)
type StreamTransport struct {
	conn   net.Conn
	config *ChannelConfig
	logger *logging.Logger

	// Статистика
	stats   ConnectionStats
	statsMu sync.Mutex

	// Контроль выполнения
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Буферы
	sendBuffer chan []byte
	recvBuffer chan []byte

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// NewStreamTransport оборачивает соединение и запускает горутины чтения и записи
func NewStreamTransport(conn net.Conn, config *ChannelConfig, logger *logging.Logger) *StreamTransport {
	if config == nil {
		config = DefaultChannelConfig(ChannelTCP)
	}
	ctx, cancel := context.WithCancel(context.Background())

	st := &StreamTransport{
		conn:       conn,
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		sendBuffer: make(chan []byte, config.BufferSize),
		recvBuffer: make(chan []byte, config.BufferSize),
	}

	st.stats.Connected = true
	st.stats.RemoteAddr = conn.RemoteAddr().String()
	st.stats.LastActivity = time.Now()

	st.wg.Add(2)
	go st.sendLoop()
	go st.receiveLoop()

	logger.Debug("%s transport created: addr=%s", config.Type, st.stats.RemoteAddr)
	return st
}

// Receive возвращает очередной кусок потока, не блокируясь.
// Данные, прочитанные до разрыва, отдаются раньше ошибки.
func (st *StreamTransport) Receive() ([]byte, error) {
	select {
	case chunk := <-st.recvBuffer:
		return chunk, nil
	default:
	}

	if err := st.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

// Send ставит копию данных в очередь отправки
func (st *StreamTransport) Send(data []byte) error {
	if err := st.Err(); err != nil {
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case st.sendBuffer <- buf:
		return nil
	case <-st.ctx.Done():
		return st.lostErr(nil)
	default:
		st.statsMu.Lock()
		st.stats.SendDropped++
		st.statsMu.Unlock()
		return ErrSendBufferFull
	}
}

// Close закрывает соединение и ждёт завершения горутин. Повторный вызов безопасен.
func (st *StreamTransport) Close() error {
	var err error
	st.closeOnce.Do(func() {
		st.setErr(fmt.Errorf("%w: closed locally", ErrConnectionLost))
		st.cancel()
		err = st.conn.Close()

		st.statsMu.Lock()
		st.stats.Connected = false
		st.statsMu.Unlock()

		st.wg.Wait()
		st.logger.Debug("%s transport closed: addr=%s", st.config.Type, st.RemoteAddr())
	})
	return err
}

// RemoteAddr возвращает адрес удалённой стороны
func (st *StreamTransport) RemoteAddr() string {
	st.statsMu.Lock()
	defer st.statsMu.Unlock()
	return st.stats.RemoteAddr
}

// Stats возвращает статистику соединения
func (st *StreamTransport) Stats() ConnectionStats {
	st.statsMu.Lock()
	defer st.statsMu.Unlock()
	return st.stats
}

// Err возвращает ошибку, с которой соединение завершилось
func (st *StreamTransport) Err() error {
	st.errMu.Lock()
	defer st.errMu.Unlock()
	return st.err
}

func (st *StreamTransport) setErr(err error) {
	st.errMu.Lock()
	if st.err == nil {
		st.err = err
	}
	st.errMu.Unlock()
}

func (st *StreamTransport) lostErr(cause error) error {
	if err := st.Err(); err != nil {
		return err
	}
	if cause == nil {
		return ErrConnectionLost
	}
	return fmt.Errorf("%w: %v", ErrConnectionLost, cause)
}

// sendLoop пишет данные из очереди в сокет
func (st *StreamTransport) sendLoop() {
	defer st.wg.Done()

	for {
		select {
		case data := <-st.sendBuffer:
			if _, err := st.conn.Write(data); err != nil {
				st.fail(err)
				return
			}
			st.statsMu.Lock()
			st.stats.BytesSent += uint64(len(data))
			st.stats.ChunksSent++
			st.stats.LastActivity = time.Now()
			st.statsMu.Unlock()
		case <-st.ctx.Done():
			return
		}
	}
}

// receiveLoop читает сокет и складывает куски в очередь приёма
func (st *StreamTransport) receiveLoop() {
	defer st.wg.Done()

	buf := make([]byte, st.config.ReadBufferSize)
	for {
		n, err := st.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			st.statsMu.Lock()
			st.stats.BytesReceived += uint64(n)
			st.stats.ChunksReceived++
			st.stats.LastActivity = time.Now()
			st.statsMu.Unlock()

			select {
			case st.recvBuffer <- chunk:
			case <-st.ctx.Done():
				return
			}
		}
		if err != nil {
			st.fail(err)
			return
		}
	}
}

// fail фиксирует разрыв соединения
func (st *StreamTransport) fail(err error) {
	select {
	case <-st.ctx.Done():
		return
	default:
	}

	if errors.Is(err, io.EOF) {
		st.logger.Info("Connection closed by remote: addr=%s", st.RemoteAddr())
	} else {
		st.logger.Warn("Connection error: addr=%s err=%v", st.RemoteAddr(), err)
	}
	st.setErr(fmt.Errorf("%w: %v", ErrConnectionLost, err))

	st.statsMu.Lock()
	st.stats.Connected = false
	st.statsMu.Unlock()
}
