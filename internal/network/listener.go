package network

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/annel0/coin-collector/internal/logging"
	"github.com/xtaci/kcp-go/v5"
)

// Listener принимает входящие соединения в фоне и отдаёт их без блокировки
type Listener struct {
	listener net.Listener
	config   *ChannelConfig
	logger   *logging.Logger

	accepted chan Transport

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Listen открывает слушающий сокет нужного типа и запускает приём соединений
func Listen(addr string, config *ChannelConfig, logger *logging.Logger) (*Listener, error) {
	if config == nil {
		config = DefaultChannelConfig(ChannelTCP)
	}

	var (
		ln  net.Listener
		err error
	)
	switch config.Type {
	case ChannelTCP:
		ln, err = net.Listen("tcp", addr)
	case ChannelKCP:
		ln, err = kcp.ListenWithOptions(addr, nil, 10, 3)
	default:
		return nil, fmt.Errorf("unsupported channel type %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return NewListener(ln, config, logger), nil
}

// NewListener запускает приём соединений на готовом сокете
func NewListener(ln net.Listener, config *ChannelConfig, logger *logging.Logger) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		listener: ln,
		config:   config,
		logger:   logger,
		accepted: make(chan Transport, 64),
		ctx:      ctx,
		cancel:   cancel,
	}

	l.wg.Add(1)
	go l.acceptLoop()

	logger.Info("🚀 %s listener started on %s", config.Type, ln.Addr())
	return l
}

// Poll возвращает очередное принятое соединение или nil
func (l *Listener) Poll() Transport {
	select {
	case t := <-l.accepted:
		return t
	default:
		return nil
	}
}

// Addr возвращает адрес слушающего сокета
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close останавливает приём и закрывает непринятые соединения
func (l *Listener) Close() error {
	l.cancel()
	err := l.listener.Close()
	l.wg.Wait()

	for {
		select {
		case t := <-l.accepted:
			t.Close()
		default:
			l.logger.Info("🛑 %s listener stopped", l.config.Type)
			return err
		}
	}
}

// acceptLoop принимает входящие соединения
func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			l.logger.Error("Failed to accept connection: %v", err)
			return
		}

		prepareConn(conn, l.config)
		t := NewStreamTransport(conn, l.config, l.logger)

		select {
		case l.accepted <- t:
		case <-l.ctx.Done():
			t.Close()
			return
		}
	}
}

// prepareConn настраивает параметры сокета под игровой трафик
func prepareConn(conn net.Conn, config *ChannelConfig) {
	switch c := conn.(type) {
	case *net.TCPConn:
		_ = c.SetNoDelay(true)
		if config.KeepAlive > 0 {
			_ = c.SetKeepAlive(true)
			_ = c.SetKeepAlivePeriod(config.KeepAlive)
		}
	case *kcp.UDPSession:
		tuneKCP(c)
	}
}

// tuneKCP включает потоковый режим и агрессивные настройки повторной передачи
func tuneKCP(sess *kcp.UDPSession) {
	sess.SetStreamMode(true)
	sess.SetWriteDelay(false)
	sess.SetNoDelay(1, 20, 2, 1)
	sess.SetWindowSize(512, 512)
	sess.SetMtu(1400)
}
