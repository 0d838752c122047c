package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	applog "audioroute/internal/log"
)

// MaxPacketSize is the largest payload a single IPv4 UDP datagram carries.
const MaxPacketSize = 65507

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("udp sender closed")

// UDPSender writes snapshot packets to one target.
type UDPSender struct {
	conn   *net.UDPConn
	target string
	mu     sync.Mutex // Serializes writes against Close.
	closed bool
}

// NewUDPSender dials targetAddress ("host:port", e.g. "127.0.0.1:9090").
// No local port is bound; the kernel picks one.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve udp target %q: %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial udp target %q: %w", targetAddress, err)
	}

	applog.WithFields(applog.Fields{
		"function": "NewUDPSender",
		"target":   conn.RemoteAddr().String(),
	}).Info("UDP snapshot target ready")

	return &UDPSender{conn: conn, target: conn.RemoteAddr().String()}, nil
}

// Target returns the resolved remote address.
func (s *UDPSender) Target() string {
	return s.target
}

// Send writes packet as one datagram. It is safe for concurrent use.
func (s *UDPSender) Send(packet []byte) error {
	if len(packet) > MaxPacketSize {
		return fmt.Errorf("packet of %d bytes exceeds %d", len(packet), MaxPacketSize)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSenderClosed
	}
	_, err := s.conn.Write(packet)
	s.mu.Unlock()

	if err != nil {
		applog.Warnf("UDP Sender: Error sending packet to %s: %v", s.target, err)
		return fmt.Errorf("send udp packet: %w", err)
	}
	return nil
}

// Close releases the socket. Later calls are no-ops.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	applog.Debugf("UDP Sender: Closing connection to %s", s.target)
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close udp connection: %w", err)
	}
	return nil
}
