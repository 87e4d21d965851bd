package network

import (
	"context"
	"fmt"
	"net"

	"github.com/annel0/coin-collector/internal/logging"
	"github.com/xtaci/kcp-go/v5"
)

// Dial устанавливает соединение с сервером и возвращает неблокирующий транспорт
func Dial(ctx context.Context, addr string, config *ChannelConfig, logger *logging.Logger) (*StreamTransport, error) {
	if config == nil {
		config = DefaultChannelConfig(ChannelTCP)
	}

	var (
		conn net.Conn
		err  error
	)
	switch config.Type {
	case ChannelTCP:
		d := net.Dialer{Timeout: config.DialTimeout, KeepAlive: config.KeepAlive}
		conn, err = d.DialContext(ctx, "tcp", addr)
	case ChannelKCP:
		var sess *kcp.UDPSession
		sess, err = kcp.DialWithOptions(addr, nil, 10, 3)
		if err == nil {
			conn = sess
		}
	default:
		return nil, fmt.Errorf("unsupported channel type %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	prepareConn(conn, config)
	logger.Info("%s connected: addr=%s", config.Type, addr)
	return NewStreamTransport(conn, config, logger), nil
}
