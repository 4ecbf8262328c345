package testhelper

import (
	"bytes"
	"net"
	"sync"
)

// CaptureServer is a tcp listener that records every byte received across
// all connections, in arrival order.
type CaptureServer struct {
	ln net.Listener

	mu        sync.Mutex
	buf       bytes.Buffer
	conns     int
	closeNext int

	wg   sync.WaitGroup
	done chan struct{}
}

// NewCaptureServer returns a capture server listening on an ephemeral
// 127.0.0.1 port.
func NewCaptureServer() (*CaptureServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &CaptureServer{
		ln:   ln,
		done: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the host:port the server listens on.
func (s *CaptureServer) Addr() string {
	return s.ln.Addr().String()
}

// Bytes returns everything received so far.
func (s *CaptureServer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := make([]byte, s.buf.Len())
	copy(b, s.buf.Bytes())
	return b
}

// Conns returns the number of connections accepted so far.
func (s *CaptureServer) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// CloseAfterBytes makes the server close the next connection after it has
// read roughly n bytes from it, to simulate a mid-batch failure.
func (s *CaptureServer) CloseAfterBytes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeNext = n
}

// Close stops the listener and waits for connection handlers to finish.
func (s *CaptureServer) Close() error {
	close(s.done)
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *CaptureServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns++
		limit := s.closeNext
		s.closeNext = 0
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn, limit)
	}
}

func (s *CaptureServer) handle(conn net.Conn, limit int) {
	defer s.wg.Done()
	defer conn.Close()

	b := make([]byte, 4096)
	read := 0
	for {
		select {
		case <-s.done:
			return
		default:
		}

		max := len(b)
		if limit > 0 && limit-read < max {
			max = limit - read
		}
		n, err := conn.Read(b[:max])
		if n > 0 {
			s.mu.Lock()
			s.buf.Write(b[:n])
			s.mu.Unlock()
			read += n
		}
		if err != nil {
			return
		}
		if limit > 0 && read >= limit {
			return
		}
	}
}

// UDPCaptureServer records datagrams received on an ephemeral 127.0.0.1
// port, one entry per packet.
type UDPCaptureServer struct {
	pc net.PacketConn

	mu        sync.Mutex
	datagrams [][]byte

	wg sync.WaitGroup
}

// NewUDPCaptureServer returns a new udp capture server.
func NewUDPCaptureServer() (*UDPCaptureServer, error) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &UDPCaptureServer{pc: pc}
	s.wg.Add(1)
	go s.readLoop()
	return s, nil
}

// Addr returns the host:port the server listens on.
func (s *UDPCaptureServer) Addr() string {
	return s.pc.LocalAddr().String()
}

// Datagrams returns the packets received so far.
func (s *UDPCaptureServer) Datagrams() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.datagrams))
	copy(out, s.datagrams)
	return out
}

// Close stops the server.
func (s *UDPCaptureServer) Close() error {
	err := s.pc.Close()
	s.wg.Wait()
	return err
}

func (s *UDPCaptureServer) readLoop() {
	defer s.wg.Done()
	b := make([]byte, 64*1024)
	for {
		n, _, err := s.pc.ReadFrom(b)
		if n > 0 {
			p := make([]byte, n)
			copy(p, b[:n])
			s.mu.Lock()
			s.datagrams = append(s.datagrams, p)
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}
