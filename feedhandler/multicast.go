/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package feedhandler

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// recvBufferSize matches the largest possible UDP datagram; one staging
// buffer is reused across reads per receiver.
const recvBufferSize = 65536

// Receiver joins a multicast group and pumps datagrams into a channel
// consumed by the dispatch loop. The reader goroutine only copies bytes;
// all decoding and state mutation stays on the dispatch loop.
type Receiver struct {
	name string
	conn *net.UDPConn
	buf  []byte
	out  chan []byte
}

// NewReceiver joins group:port on the given interface address.
func NewReceiver(name, group string, port int, ifaceAddr string) (*Receiver, error) {
	gaddr := &net.UDPAddr{IP: net.ParseIP(group), Port: port}
	if gaddr.IP == nil {
		return nil, fmt.Errorf("%s: bad group %q", name, group)
	}

	var iface *net.Interface
	if ifaceAddr != "" && ifaceAddr != "0.0.0.0" {
		var err error
		if iface, err = interfaceByAddr(ifaceAddr); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	conn, err := net.ListenMulticastUDP("udp4", iface, gaddr)
	if err != nil {
		return nil, fmt.Errorf("%s: join %s:%d: %w", name, group, port, err)
	}
	_ = conn.SetReadBuffer(4 << 20)

	return &Receiver{
		name: name,
		conn: conn,
		buf:  make([]byte, recvBufferSize),
		out:  make(chan []byte, 1024),
	}, nil
}

// interfaceByAddr resolves a local IP to its interface for the multicast
// join.
func interfaceByAddr(addr string) (*net.Interface, error) {
	want := net.ParseIP(addr)
	if want == nil {
		return nil, fmt.Errorf("bad interface address %q", addr)
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && ipn.IP.Equal(want) {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("no interface with address %s", addr)
}

// Datagrams returns the receive channel.
func (r *Receiver) Datagrams() <-chan []byte { return r.out }

// Run reads datagrams until the socket is closed. Each datagram is copied
// out of the staging buffer; a full channel drops the datagram (the feed
// is lossy by nature and per-security sequencing recovers).
func (r *Receiver) Run() {
	for {
		n, _, err := r.conn.ReadFromUDP(r.buf)
		if err != nil {
			close(r.out)
			return
		}
		dgram := make([]byte, n)
		copy(dgram, r.buf[:n])
		select {
		case r.out <- dgram:
		default:
		}
	}
}

// Close releases the socket; Run exits on the next read.
func (r *Receiver) Close() error { return r.conn.Close() }

// Sender publishes datagrams to a multicast group.
type Sender struct {
	conn *net.UDPConn
}

// NewSender connects a UDP socket to the multicast group with the given
// TTL. The feed contract defaults to TTL 1 (link-local); operators raise
// it to cross router boundaries. A failure to set the TTL is a startup
// failure, not a silent fallback to the OS default.
func NewSender(group string, port, ttl int) (*Sender, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(group), Port: port}
	if addr.IP == nil {
		return nil, fmt.Errorf("bad group %q", group)
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s:%d: %w", group, port, err)
	}
	if err := ipv4.NewPacketConn(conn).SetMulticastTTL(ttl); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set multicast TTL %d on %s:%d: %w", ttl, group, port, err)
	}
	return &Sender{conn: conn}, nil
}

// Send writes one datagram.
func (s *Sender) Send(b []byte) error {
	_, err := s.conn.Write(b)
	return err
}

// Close releases the socket.
func (s *Sender) Close() error { return s.conn.Close() }
