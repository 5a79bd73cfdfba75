package transport

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/shmocz/ra2yrcpp-sub000/command"
	"github.com/shmocz/ra2yrcpp-sub000/internal/config"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Command.Address = "127.0.0.1:0"
	cfg.Poll.Address = ""
	cfg.AdmitRate = 0
	cfg.AdmitBurst = 0
	cfg.MaxClients = 0
	return cfg
}

func TestNewServerRejectsBadAllowedHostRegex(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedHostRegex = "(["
	_, err := NewServer(cfg, nil, nil)
	require.Error(t, err)
}

func TestAdmitRejectsDisallowedHost(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedHostRegex = `^10\.`
	s, err := NewServer(cfg, nil, nil)
	require.NoError(t, err)

	require.False(t, s.admit(fakeConn{remote: fakeAddr("192.168.1.5:1")}))
}

func TestAdmitAllowsMatchingHost(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedHostRegex = `^192\.168\.`
	s, err := NewServer(cfg, nil, nil)
	require.NoError(t, err)

	require.True(t, s.admit(fakeConn{remote: fakeAddr("192.168.1.5:1")}))
}

func TestAdmitEnforcesRateLimiter(t *testing.T) {
	cfg := testConfig()
	cfg.AdmitRate = 1000
	cfg.AdmitBurst = 1
	s, err := NewServer(cfg, nil, nil)
	require.NoError(t, err)

	c := fakeConn{remote: fakeAddr("10.0.0.1:1")}
	require.True(t, s.admit(c))
	require.False(t, s.admit(c))
}

func TestAdmitEnforcesMaxClients(t *testing.T) {
	cfg := testConfig()
	cfg.MaxClients = 1
	s, err := NewServer(cfg, nil, nil)
	require.NoError(t, err)

	require.True(t, s.admit(fakeConn{remote: fakeAddr("10.0.0.1:1")}))
	require.False(t, s.admit(fakeConn{remote: fakeAddr("10.0.0.2:1")}))

	s.releaseClient()
	require.True(t, s.admit(fakeConn{remote: fakeAddr("10.0.0.3:1")}))
}

// newEchoManager builds a running command.Manager with a single handler that
// echoes a StoreValue's Value back as its Result, enough to exercise
// dispatch end to end without a real hook engine or storage.
func newEchoManager(t *testing.T) *command.Manager {
	t.Helper()
	reg := command.NewRegistry()
	reg.Register(testEchoKind, func(ctx *command.Context) error {
		var req wire.StoreValue
		if err := req.Unmarshal(ctx.Payload); err != nil {
			return err
		}
		req.Result = req.Value
		ctx.Ok(wire.Pack(testEchoKind, req))
		return nil
	})
	m := command.NewManager(reg, noopDeps{}, nil)
	go m.Run()
	t.Cleanup(func() { m.Shutdown(); m.Wait() })
	return m
}

// acceptLoop runs a minimal stand-in for Server.Serve against an
// already-bound listener, so the test controls listener lifetime directly
// instead of parsing Serve's ephemeral port back out of an address string.
func acceptLoop(t *testing.T, s *Server, ln net.Listener, httpFallback bool) {
	t.Helper()
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if !s.admit(conn) {
				conn.Close()
				continue
			}
			go s.handleConn(conn, httpFallback)
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
}

func TestServerBinaryFrameRoundTrip(t *testing.T) {
	m := newEchoManager(t)
	s, err := NewServer(testConfig(), m, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	acceptLoop(t, s, ln, false)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	cmd := wire.Command{
		CommandType: wire.CommandTypeClientCommand,
		Command:     wire.Pack(testEchoKind, wire.StoreValue{Key: "k", Value: "hello"}),
		Blocking:    true,
	}
	require.NoError(t, wire.WriteFrame(conn, cmd.Marshal()))

	payload, err := wire.ReadFrame(bufio.NewReader(conn))
	require.NoError(t, err)

	var resp wire.Response
	require.NoError(t, resp.Unmarshal(payload))
	require.Equal(t, wire.ResponseCodeOK, resp.Code)
	require.Equal(t, wire.PayloadKindCommandResult, resp.Body.Kind)

	var result wire.CommandResult
	require.NoError(t, result.Unmarshal(resp.Body.Value))
	var echoed wire.StoreValue
	require.NoError(t, echoed.Unmarshal(result.Result.Value))
	require.Equal(t, "hello", echoed.Result)
}

func TestServerMultipleFramesOnOneConnection(t *testing.T) {
	m := newEchoManager(t)
	s, err := NewServer(testConfig(), m, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	acceptLoop(t, s, ln, false)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	reader := bufio.NewReader(conn)

	for i := 0; i < 3; i++ {
		cmd := wire.Command{
			CommandType: wire.CommandTypeClientCommand,
			Command:     wire.Pack(testEchoKind, wire.StoreValue{Key: "k", Value: "v"}),
			Blocking:    true,
		}
		require.NoError(t, wire.WriteFrame(conn, cmd.Marshal()))

		payload, err := wire.ReadFrame(reader)
		require.NoError(t, err)
		var resp wire.Response
		require.NoError(t, resp.Unmarshal(payload))
		require.Equal(t, wire.ResponseCodeOK, resp.Code)
	}
}

func TestServerShutdownCommandClosesConnection(t *testing.T) {
	m := newEchoManager(t)
	s, err := NewServer(testConfig(), m, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	acceptLoop(t, s, ln, false)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	cmd := wire.Command{CommandType: wire.CommandTypeShutdown}
	require.NoError(t, wire.WriteFrame(conn, cmd.Marshal()))

	payload, err := wire.ReadFrame(bufio.NewReader(conn))
	require.NoError(t, err)
	var resp wire.Response
	require.NoError(t, resp.Unmarshal(payload))
	require.Equal(t, wire.ResponseCodeOK, resp.Code)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = wire.ReadFrame(bufio.NewReader(conn))
	require.Error(t, err)
}

func TestServerHTTPFallbackRoundTrip(t *testing.T) {
	m := newEchoManager(t)
	s, err := NewServer(testConfig(), m, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	acceptLoop(t, s, ln, true)

	cmd := wire.Command{
		CommandType: wire.CommandTypeClientCommand,
		Command:     wire.Pack(testEchoKind, wire.StoreValue{Key: "k", Value: "via-http"}),
		Blocking:    true,
	}
	body, err := wire.CommandToJSON(cmd)
	require.NoError(t, err)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Host = "test"
	req.ContentLength = int64(len(body))
	require.NoError(t, req.Write(conn))

	reader := bufio.NewReader(conn)
	httpResp, err := http.ReadResponse(reader, req)
	require.NoError(t, err)
	defer httpResp.Body.Close()
	require.Equal(t, 200, httpResp.StatusCode)

	respBody := make([]byte, httpResp.ContentLength)
	_, err = io.ReadFull(httpResp.Body, respBody)
	require.NoError(t, err)

	resp, err := wire.ResponseFromJSON(respBody)
	require.NoError(t, err)
	require.Equal(t, wire.ResponseCodeOK, resp.Code)
	require.Equal(t, wire.PayloadKindCommandResult, resp.Body.Kind)
}
