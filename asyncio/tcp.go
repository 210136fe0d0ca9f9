// File: asyncio/tcp.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TCP listener and connection built on Async, exercising the adapter
// pattern for accept/connect/read/write the way any real collaborator of
// this runtime (an echo server, say) would.
package asyncio

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/brianshih1/mini-async-runtime/internal/task"
	"github.com/brianshih1/mini-async-runtime/reactor"
)

// rawFd is the minimal FdHolder adapter for a plain kernel fd.
type rawFd int

func (f rawFd) Fd() int { return int(f) }

// Listener is a non-blocking TCP listener whose Accept suspends the
// calling Task, rather than the OS thread, until a connection arrives.
type Listener struct {
	fd int
	a  *Async[rawFd]
}

// Listen creates a non-blocking TCP listener bound to addr (e.g.
// "0.0.0.0:8080") and registers it with the currently-bound executor.
func Listen(addr string) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("asyncio: resolve %q: %w", addr, err)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("asyncio: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("asyncio: setsockopt SO_REUSEADDR: %w", err)
	}
	var sa unix.SockaddrInet4
	sa.Port = tcpAddr.Port
	if tcpAddr.IP != nil {
		copy(sa.Addr[:], tcpAddr.IP.To4())
	}
	if err := unix.Bind(fd, &sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("asyncio: bind: %w", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("asyncio: listen: %w", err)
	}
	a, err := NewAsync[rawFd](rawFd(fd))
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Listener{fd: fd, a: a}, nil
}

// Fd satisfies FdHolder.
func (l *Listener) Fd() int { return l.fd }

// Addr reports the address the listener is actually bound to, which
// matters when Listen was asked for an ephemeral ":0" port.
func (l *Listener) Addr() (string, error) {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return "", fmt.Errorf("asyncio: getsockname: %w", err)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", fmt.Errorf("asyncio: unexpected sockaddr type %T", sa)
	}
	ip := net.IP(in4.Addr[:])
	return fmt.Sprintf("%s:%d", ip.String(), in4.Port), nil
}

// Close deregisters and closes the listening socket.
func (l *Listener) Close() error {
	return errors.Join(l.a.Close(), unix.Close(l.fd))
}

// AcceptOutcome is the result of a completed Accept.
type AcceptOutcome struct {
	Conn *Conn
	Err  error
}

// Accept returns a Future resolving to a newly-accepted, non-blocking
// Conn once one is available, following the same try/register/wait
// adapter every other suspension point in this runtime uses.
func (l *Listener) Accept() task.Future[AcceptOutcome] {
	return &acceptFuture{l: l}
}

type acceptFuture struct {
	l       *Listener
	waiting task.Future[reactor.IOResult]
	done    bool
	out     AcceptOutcome
}

func (f *acceptFuture) Poll(w *task.Waker) (AcceptOutcome, bool) {
	if f.done {
		return f.out, true
	}
	if f.waiting != nil {
		if _, ready := f.waiting.Poll(w); !ready {
			return AcceptOutcome{}, false
		}
		f.waiting = nil
	}
	nfd, _, err := unix.Accept4(f.l.fd, unix.SOCK_NONBLOCK)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		f.waiting = f.l.a.source.Readable()
		f.waiting.Poll(w)
		return AcceptOutcome{}, false
	}
	f.done = true
	if err != nil {
		f.out = AcceptOutcome{Err: fmt.Errorf("asyncio: accept: %w", err)}
		return f.out, true
	}
	conn, cerr := newConn(nfd)
	f.out = AcceptOutcome{Conn: conn, Err: cerr}
	return f.out, true
}

// Conn is a non-blocking, asyncio-registered TCP connection.
type Conn struct {
	fd int
	a  *Async[rawFd]
}

func newConn(fd int) (*Conn, error) {
	a, err := NewAsync[rawFd](rawFd(fd))
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Conn{fd: fd, a: a}, nil
}

// DialOutcome is the result of a completed Dial.
type DialOutcome struct {
	Conn *Conn
	Err  error
}

// Dial connects, non-blockingly, to addr, suspending the calling Task
// until the connection completes (or fails).
func Dial(addr string) task.Future[DialOutcome] {
	return &dialFuture{addr: addr}
}

type dialFuture struct {
	addr    string
	conn    *Conn
	waiting task.Future[reactor.IOResult]
	started bool
	done    bool
	out     DialOutcome
}

func (f *dialFuture) Poll(w *task.Waker) (DialOutcome, bool) {
	if f.done {
		return f.out, true
	}
	if !f.started {
		f.started = true
		tcpAddr, err := net.ResolveTCPAddr("tcp4", f.addr)
		if err != nil {
			f.done = true
			f.out = DialOutcome{Err: fmt.Errorf("asyncio: resolve %q: %w", f.addr, err)}
			return f.out, true
		}
		fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
		if err != nil {
			f.done = true
			f.out = DialOutcome{Err: fmt.Errorf("asyncio: socket: %w", err)}
			return f.out, true
		}
		conn, err := newConn(fd)
		if err != nil {
			f.done = true
			f.out = DialOutcome{Err: err}
			return f.out, true
		}
		f.conn = conn
		var sa unix.SockaddrInet4
		sa.Port = tcpAddr.Port
		if tcpAddr.IP != nil {
			copy(sa.Addr[:], tcpAddr.IP.To4())
		}
		cerr := unix.Connect(fd, &sa)
		if cerr != nil && cerr != unix.EINPROGRESS && cerr != unix.EAGAIN {
			f.done = true
			f.conn.Close()
			f.out = DialOutcome{Err: fmt.Errorf("asyncio: connect: %w", cerr)}
			return f.out, true
		}
		f.waiting = f.conn.a.source.Writable()
		f.waiting.Poll(w)
		return DialOutcome{}, false
	}
	if f.waiting != nil {
		if _, ready := f.waiting.Poll(w); !ready {
			return DialOutcome{}, false
		}
		f.waiting = nil
	}
	errno, serr := unix.GetsockoptInt(f.conn.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	f.done = true
	if serr != nil {
		f.out = DialOutcome{Err: fmt.Errorf("asyncio: getsockopt SO_ERROR: %w", serr)}
		return f.out, true
	}
	if errno != 0 {
		f.conn.Close()
		f.out = DialOutcome{Err: fmt.Errorf("asyncio: connect: %w", unix.Errno(errno))}
		return f.out, true
	}
	f.out = DialOutcome{Conn: f.conn}
	return f.out, true
}

// Fd satisfies FdHolder.
func (c *Conn) Fd() int { return c.fd }

// Close deregisters and closes the connection.
func (c *Conn) Close() error {
	return errors.Join(c.a.Close(), unix.Close(c.fd))
}

// Read returns a Future resolving once at least one byte has been read
// into buf, or an error (including a zero-length, no-error read
// signaling EOF, per net.Conn convention) has occurred.
func (c *Conn) Read(buf []byte) task.Future[IOOutcome] {
	return c.a.ReadWith(buf)
}

// Write returns a Future resolving once one non-blocking write of buf has
// succeeded or failed; IOOutcome.N may be less than len(buf), and the
// remainder is not written.
func (c *Conn) Write(buf []byte) task.Future[IOOutcome] {
	return c.a.WriteWith(buf)
}
