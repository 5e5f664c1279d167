package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/crypto/ssh"
)

// FakeSSHServer is an in-process SSH endpoint that hands every shell to a fresh FakeIOS.
type FakeSSHServer struct {
	Username string
	Password string

	newDevice func() *FakeIOS
	config    *ssh.ServerConfig
	listener  net.Listener
	wg        sync.WaitGroup

	authAttempts atomic.Int32
	devicesMu    sync.Mutex
	devices      []*FakeIOS
}

func StartFakeSSHServer(t testing.TB, username, password string, newDevice func() *FakeIOS) *FakeSSHServer {
	t.Helper()
	s := &FakeSSHServer{Username: username, Password: password, newDevice: newDevice}

	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("unable to generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(private)
	if err != nil {
		t.Fatalf("unable to build host key signer: %v", err)
	}
	s.config = &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			s.authAttempts.Add(1)
			if c.User() == s.Username && string(pass) == s.Password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	s.config.AddHostKey(signer)

	s.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to start fake device: %v", err)
	}
	s.wg.Add(1)
	go s.acceptUntilError()
	t.Cleanup(s.Close)
	return s
}

func (s *FakeSSHServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *FakeSSHServer) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

func (s *FakeSSHServer) AuthAttempts() int {
	return int(s.authAttempts.Load())
}

// Devices returns the device instances created so far, one per opened shell.
func (s *FakeSSHServer) Devices() []*FakeIOS {
	s.devicesMu.Lock()
	defer s.devicesMu.Unlock()
	return append([]*FakeIOS{}, s.devices...)
}

func (s *FakeSSHServer) Close() {
	_ = s.listener.Close()
	s.wg.Wait()
}

func (s *FakeSSHServer) acceptUntilError() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *FakeSSHServer) handleConn(conn net.Conn) {
	_, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)
	for newCh := range chans {
		go s.handleChannel(newCh)
	}
}

func (s *FakeSSHServer) handleChannel(newCh ssh.NewChannel) {
	if t := newCh.ChannelType(); t != "session" {
		_ = newCh.Reject(ssh.UnknownChannelType, fmt.Sprintf("unknown channel type: %v", t))
		return
	}
	ch, reqs, err := newCh.Accept()
	if err != nil {
		return
	}

	shellStarted := make(chan struct{})
	requestsDone := make(chan struct{})
	go func() {
		defer close(requestsDone)
		started := false
		for req := range reqs {
			ok := false
			switch req.Type {
			case "pty-req", "window-change", "env":
				ok = true
			case "shell":
				ok = len(req.Payload) == 0 && !started
				if ok {
					started = true
					close(shellStarted)
				}
			}
			if req.WantReply {
				_ = req.Reply(ok, nil)
			}
		}
	}()

	go func() {
		defer ch.Close()
		select {
		case <-shellStarted:
		case <-requestsDone:
			select {
			case <-shellStarted:
			default:
				return
			}
		}
		device := s.newDevice()
		s.devicesMu.Lock()
		s.devices = append(s.devices, device)
		s.devicesMu.Unlock()
		_ = device.Serve(ch, ch)
	}()
}
