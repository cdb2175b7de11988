package rcon

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/wire/source"
)

// fakeGoldSrcServer answers challenge requests and "rcon" commands over
// UDP, standing in for a real GoldSrc engine during tests.
func fakeGoldSrcServer(t *testing.T, password string) (addr string, stop func()) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	done := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		for {
			n, raddr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			msg := string(buf[4:n])
			switch {
			case len(buf) >= 4 && msg == "challenge rcon\n":
				conn.WriteTo(append([]byte{0xFF, 0xFF, 0xFF, 0xFF}, []byte("challenge rcon 12345\n")...), raddr)
			default:
				if containsAll(msg, "rcon", "12345", password, "status") {
					resp := append([]byte{0xFF, 0xFF, 0xFF, 0xFF, 'l'}, []byte("hostname: test\n")...)
					conn.WriteTo(resp, raddr)
				} else {
					resp := append([]byte{0xFF, 0xFF, 0xFF, 0xFF, 'l'}, []byte("Bad rcon_password")...)
					conn.WriteTo(resp, raddr)
				}
			}
			select {
			case <-done:
				return
			default:
			}
		}
	}()
	return conn.LocalAddr().String(), func() { close(done); conn.Close() }
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestGoldSrcConnectAndExecute(t *testing.T) {
	addr, stop := fakeGoldSrcServer(t, "secret")
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	conn := New(Config{Address: host, Port: port, Password: "secret", Engine: model.EngineGoldSrc})
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if conn.State() != StateReady {
		t.Fatalf("want Ready got %v", conn.State())
	}

	body, err := conn.Execute(context.Background(), "status")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if body != "hostname: test\n" {
		t.Fatalf("unexpected body %q", body)
	}
	conn.Disconnect()
	if conn.State() != StateClosed {
		t.Fatalf("want Closed got %v", conn.State())
	}
}

func TestGoldSrcExecuteEmptyCommandFails(t *testing.T) {
	conn := New(Config{Address: "127.0.0.1", Port: 1, Password: "x", Engine: model.EngineGoldSrc})
	if _, err := conn.Execute(context.Background(), ""); err == nil {
		t.Fatalf("expected empty command to fail")
	}
}

func TestExecuteNotConnectedFails(t *testing.T) {
	conn := New(Config{Address: "127.0.0.1", Port: 1, Password: "x", Engine: model.EngineSource})
	_, err := conn.Execute(context.Background(), "status")
	if err == nil {
		t.Fatalf("expected not-connected failure")
	}
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != FailNotConnected {
		t.Fatalf("want FailNotConnected got %v", err)
	}
}

// fakeSourceServer accepts one TCP connection, authenticates any
// password, and echoes "pong" for any command.
func fakeSourceServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen tcp: %v", err)
	}
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()

		authPkt, err := source.ReadPacket(c)
		if err != nil {
			return
		}
		c.Write(source.Encode(0, source.TypeResponseValue, ""))
		c.Write(source.Encode(authPkt.ID, source.TypeExecCommand, ""))

		for {
			pkt, err := source.ReadPacket(c)
			if err != nil {
				return
			}
			c.Write(source.Encode(pkt.ID, source.TypeResponseValue, "pong"))
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func TestExecuteSerializesConcurrentCallers(t *testing.T) {
	addr, stop := fakeSourceServer(t)
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	conn := New(Config{Address: host, Port: port, Password: "x", Engine: model.EngineSource})
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Disconnect()

	const callers = 5
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := conn.Execute(context.Background(), "status")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("expected every concurrent caller to succeed once serialised, got %v", err)
		}
	}
}

func TestSourceConnectAndExecute(t *testing.T) {
	addr, stop := fakeSourceServer(t)
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	conn := New(Config{Address: host, Port: port, Password: "x", Engine: model.EngineSource})
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if conn.State() != StateReady {
		t.Fatalf("want Ready got %v", conn.State())
	}
	conn.Disconnect()
}

