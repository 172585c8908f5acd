package snapshot

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"golang.org/x/crypto/ssh"

	"github.com/newtron-network/sessioncheck/pkg/util"
)

// sshDialTimeout bounds the TCP connect and SSH handshake
const sshDialTimeout = 15 * time.Second

// dialFunc opens a connection to addr from the far side of a tunnel
type dialFunc func(network, addr string) (net.Conn, error)

// forwarder relays connections accepted on a loopback port to a fixed
// address reached through dial.
type forwarder struct {
	listener net.Listener
	dial     dialFunc
	target   string
	done     chan struct{}
	wg       conc.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func newForwarder(dial dialFunc, target string) (*forwarder, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("local listen: %w", err)
	}
	f := &forwarder{
		listener: listener,
		dial:     dial,
		target:   target,
		done:     make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
	f.wg.Go(f.acceptLoop)
	return f, nil
}

// Addr is the loopback address clients connect to
func (f *forwarder) Addr() string {
	return f.listener.Addr().String()
}

// Close stops accepting, drops relayed connections and waits for the
// relays to exit.
func (f *forwarder) Close() error {
	close(f.done)
	err := f.listener.Close()
	f.mu.Lock()
	for c := range f.conns {
		c.Close()
	}
	f.mu.Unlock()
	f.wg.Wait()
	return err
}

func (f *forwarder) acceptLoop() {
	for {
		local, err := f.listener.Accept()
		if err != nil {
			select {
			case <-f.done:
				return
			default:
				continue
			}
		}
		f.wg.Go(func() { f.relay(local) })
	}
}

func (f *forwarder) track(c net.Conn) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return false
	default:
	}
	f.conns[c] = struct{}{}
	return true
}

func (f *forwarder) untrack(c net.Conn) {
	f.mu.Lock()
	delete(f.conns, c)
	f.mu.Unlock()
	c.Close()
}

// relay copies both ways until either side closes, then closes both
func (f *forwarder) relay(local net.Conn) {
	if !f.track(local) {
		local.Close()
		return
	}
	defer f.untrack(local)

	remote, err := f.dial("tcp", f.target)
	if err != nil {
		util.Debugf("tunnel: dial %s: %v", f.target, err)
		return
	}
	if !f.track(remote) {
		remote.Close()
		return
	}
	defer f.untrack(remote)

	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			local.Close()
			remote.Close()
		})
	}
	var copies conc.WaitGroup
	copies.Go(func() {
		io.Copy(remote, local)
		closeBoth()
	})
	copies.Go(func() {
		io.Copy(local, remote)
		closeBoth()
	})
	copies.Wait()
}

// SSHTunnel exposes CONFIG_DB of a device on a local port. Redis on SONiC
// listens on loopback only, so it is reached through an SSH connection.
type SSHTunnel struct {
	client *ssh.Client
	fwd    *forwarder
}

// NewSSHTunnel logs in to host (port 22 unless host names one) and
// forwards a local port to 127.0.0.1:redisPort on the device.
func NewSSHTunnel(ctx context.Context, host, user, pass string, redisPort int) (*SSHTunnel, error) {
	addr := sshAddress(host)
	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(pass),
		},
		// Lab devices are rebuilt often, so host keys are not pinned.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         sshDialTimeout,
	}

	client, err := dialSSH(ctx, addr, config)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", addr, err)
	}
	fwd, err := newForwarder(client.Dial, net.JoinHostPort("127.0.0.1", strconv.Itoa(redisPort)))
	if err != nil {
		client.Close()
		return nil, err
	}
	return &SSHTunnel{client: client, fwd: fwd}, nil
}

// dialSSH connects and handshakes, giving up when ctx ends
func dialSSH(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

// sshAddress adds the default SSH port to a bare host
func sshAddress(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, "22")
}

// LocalAddr returns the local address (e.g. "127.0.0.1:54321") that
// reaches Redis on the device.
func (t *SSHTunnel) LocalAddr() string {
	return t.fwd.Addr()
}

// Close stops forwarding and closes the SSH connection
func (t *SSHTunnel) Close() error {
	t.fwd.Close()
	return t.client.Close()
}
