// Copyright © NGRSoftlab 2020-2025

package ssh

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ngrsoftlab/scriptcopy/utils"
	gossh "golang.org/x/crypto/ssh"
)

// Client is an SSH connection to one node
type Client struct {
	cfg    *Config
	client *gossh.Client

	closeOnce      sync.Once     // ensures close actions run only once
	mu             sync.Mutex    // guards client for concurrent use
	keepAliveChan  chan struct{} // signals keepalive goroutine to stop
	sessionLimiter chan struct{} // limits concurrent sessions
}

// Dial connects to cfg.Addr(), retrying cfg.retryCount times, and starts a
// keepalive loop. It gives up as soon as ctx is done
func Dial(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ssh config is nil")
	}
	sshCfg, err := cfg.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("build client config: %w", err)
	}

	var conn *gossh.Client
	var lastErr error
	for i := 0; i <= cfg.retryCount; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("dial %s: %w", cfg.Addr(), ctx.Err())
			case <-time.After(cfg.retryInterval):
			}
		}
		conn, lastErr = dialContext(ctx, cfg, sshCfg)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("dial %s: %w", cfg.Addr(), ctx.Err())
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("dial failed: %w", lastErr)
	}

	cl := &Client{
		cfg:            cfg,
		client:         conn,
		keepAliveChan:  make(chan struct{}),
		sessionLimiter: make(chan struct{}, cfg.maxSessions),
	}
	go cl.keepalive()

	return cl, nil
}

// dialContext opens the TCP connection under ctx and runs the SSH handshake on it
func dialContext(ctx context.Context, cfg *Config, sshCfg *gossh.ClientConfig) (*gossh.Client, error) {
	d := net.Dialer{Timeout: cfg.timeout, KeepAlive: cfg.keepAlive}
	netConn, err := d.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := gossh.NewClientConn(netConn, cfg.Addr(), sshCfg)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	return gossh.NewClient(c, chans, reqs), nil
}

// keepalive periodically sends a no-op request to keep the connection alive
func (cl *Client) keepalive() {
	t := time.NewTicker(cl.cfg.keepAlive)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			cl.mu.Lock()
			_, _, _ = cl.client.Conn.SendRequest("keepalive@openssh.com", false, nil)
			cl.mu.Unlock()
		case <-cl.keepAliveChan:
			return
		}
	}
}

// Session wraps gossh.Session to release a session slot when closed
type Session struct {
	*gossh.Session
	client *Client
	once   sync.Once
}

// Close closes the SSH session and frees its slot
func (s *Session) Close() error {
	err := s.Session.Close()
	s.once.Do(func() { <-s.client.sessionLimiter })
	return err
}

// OpenSession waits for a free session slot and opens a new session
func (cl *Client) OpenSession(ctx context.Context) (*Session, error) {
	if cl == nil || cl.client == nil {
		return nil, utils.ErrSessionNotOpen
	}

	select {
	case cl.sessionLimiter <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	cl.mu.Lock()
	sess, err := cl.client.NewSession()
	cl.mu.Unlock()
	if err != nil {
		<-cl.sessionLimiter
		return nil, err
	}

	return &Session{Session: sess, client: cl}, nil
}

// Close stops keepalive and closes the SSH connection
func (cl *Client) Close() error {
	if cl == nil || cl.client == nil {
		return utils.ErrClientNil
	}
	cl.closeOnce.Do(func() {
		close(cl.keepAliveChan)
	})
	return cl.client.Close()
}
