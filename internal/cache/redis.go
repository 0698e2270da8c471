package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// RedisProvider implements Provider against a Redis-compatible server using
// a minimal RESP client: one short-lived connection per operation, which is
// fine at this service's cache traffic.
type RedisProvider struct {
	cfg RedisConfig
}

// RedisConfig holds connection parameters for the cache server.
type RedisConfig struct {
	Addr         string
	Password     string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// NewRedisProvider creates a Provider for the supplied configuration. It
// pings the target to fail fast when connectivity or credentials are wrong.
func NewRedisProvider(cfg RedisConfig) (*RedisProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	provider := &RedisProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := provider.ping(ctx); err != nil {
		return nil, err
	}
	return provider, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.withConn(ctx, func(rc *respConn) error {
		if err := rc.writeCommand("GET", key); err != nil {
			return err
		}
		reply, err := rc.readReply()
		if err != nil {
			return err
		}
		switch reply.kind {
		case respNil:
			return ErrCacheMiss
		case respBulk:
			payload = reply.data
			return nil
		default:
			return fmt.Errorf("unexpected reply %q for GET", reply.kind)
		}
	})
	return payload, err
}

// Set stores bytes with the provided TTL.
func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.withConn(ctx, func(rc *respConn) error {
		args := []string{key, string(value)}
		if ttl > 0 {
			args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
		}
		if err := rc.writeCommand("SET", args...); err != nil {
			return err
		}
		reply, err := rc.readReply()
		if err != nil {
			return err
		}
		if reply.kind != respSimple || string(reply.data) != "OK" {
			return fmt.Errorf("unexpected SET response: %s", reply.data)
		}
		return nil
	})
}

// Del removes a key from the cache.
func (p *RedisProvider) Del(ctx context.Context, key string) error {
	return p.withConn(ctx, func(rc *respConn) error {
		if err := rc.writeCommand("DEL", key); err != nil {
			return err
		}
		_, err := rc.readReply()
		return err
	})
}

// Close closes the provider (connections are per-operation).
func (p *RedisProvider) Close() error { return nil }

func (p *RedisProvider) ping(ctx context.Context) error {
	return p.withConn(ctx, func(rc *respConn) error {
		if err := rc.writeCommand("PING"); err != nil {
			return err
		}
		reply, err := rc.readReply()
		if err != nil {
			return err
		}
		if reply.kind != respSimple || string(reply.data) != "PONG" {
			return fmt.Errorf("unexpected PING response: %s", reply.data)
		}
		return nil
	})
}

func (p *RedisProvider) withConn(ctx context.Context, fn func(*respConn) error) error {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rc, err := p.dial(ctx)
		if err == nil {
			err = p.auth(rc)
			if err == nil {
				err = fn(rc)
			}
			rc.close()
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) || attempt == p.cfg.MaxRetries-1 {
			return err
		}
		time.Sleep(time.Duration(1<<attempt) * 25 * time.Millisecond)
	}
	return lastErr
}

func (p *RedisProvider) dial(ctx context.Context) (*respConn, error) {
	timeout := p.cfg.DialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}
	dialer := net.Dialer{Timeout: timeout}

	var (
		conn net.Conn
		err  error
	)
	if p.cfg.TLS {
		host := p.cfg.Addr
		if h, _, splitErr := net.SplitHostPort(p.cfg.Addr); splitErr == nil {
			host = h
		}
		conn, err = tls.DialWithDialer(&dialer, "tcp", p.cfg.Addr, &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: host,
		})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, err
	}
	return &respConn{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writer:       bufio.NewWriter(conn),
		readTimeout:  p.cfg.ReadTimeout,
		writeTimeout: p.cfg.WriteTimeout,
	}, nil
}

func (p *RedisProvider) auth(rc *respConn) error {
	if p.cfg.Password == "" {
		return nil
	}
	if err := rc.writeCommand("AUTH", p.cfg.Password); err != nil {
		return err
	}
	reply, err := rc.readReply()
	if err != nil {
		return err
	}
	if reply.kind != respSimple || !strings.EqualFold(string(reply.data), "OK") {
		return fmt.Errorf("auth failed: %s", reply.data)
	}
	return nil
}

func retryable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// respKind enumerates the subset of RESP reply types the provider handles.
type respKind byte

const (
	respSimple respKind = '+'
	respBulk   respKind = '$'
	respInt    respKind = ':'
	respNil    respKind = '_'
)

type respReply struct {
	kind respKind
	data []byte
}

// respConn wraps a network connection with RESP encode/decode helpers.
type respConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writer       *bufio.Writer
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (rc *respConn) close() {
	_ = rc.conn.Close()
}

func (rc *respConn) writeCommand(command string, args ...string) error {
	if err := rc.conn.SetWriteDeadline(time.Now().Add(rc.writeTimeout)); err != nil {
		return err
	}
	parts := append([]string{command}, args...)
	if _, err := fmt.Fprintf(rc.writer, "*%d\r\n", len(parts)); err != nil {
		return err
	}
	for _, part := range parts {
		if _, err := fmt.Fprintf(rc.writer, "$%d\r\n%s\r\n", len(part), part); err != nil {
			return err
		}
	}
	return rc.writer.Flush()
}

func (rc *respConn) readReply() (respReply, error) {
	if err := rc.conn.SetReadDeadline(time.Now().Add(rc.readTimeout)); err != nil {
		return respReply{}, err
	}
	prefix, err := rc.reader.ReadByte()
	if err != nil {
		return respReply{}, err
	}
	switch prefix {
	case '+':
		line, err := rc.readLine()
		return respReply{kind: respSimple, data: line}, err
	case '-':
		line, err := rc.readLine()
		if err != nil {
			return respReply{}, err
		}
		return respReply{}, errors.New(string(line))
	case ':':
		line, err := rc.readLine()
		return respReply{kind: respInt, data: line}, err
	case '$':
		line, err := rc.readLine()
		if err != nil {
			return respReply{}, err
		}
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return respReply{}, err
		}
		if size < 0 {
			return respReply{kind: respNil}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(rc.reader, buf); err != nil {
			return respReply{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return respReply{}, errors.New("invalid bulk string termination")
		}
		return respReply{kind: respBulk, data: buf[:size]}, nil
	default:
		return respReply{}, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func (rc *respConn) readLine() ([]byte, error) {
	line, err := rc.reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}
