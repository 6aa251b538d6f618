package libvirt

import (
	"context"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Connection defaults.
const (
	DefaultSocket  = "/var/run/libvirt/libvirt-sock"
	DefaultTimeout = 5 * time.Second
)

// Client is a connection to the local libvirt daemon.
type Client struct {
	libvirt *libvirt.Libvirt
}

// Connect establishes a connection to the local libvirt daemon over its
// UNIX socket (qemu:///system). The Client must be closed when done.
//
// Empty socketPath and zero timeout select DefaultSocket and DefaultTimeout.
func Connect(socketPath string, timeout time.Duration) (*Client, error) {
	if socketPath == "" {
		socketPath = DefaultSocket
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	dialer := dialers.NewLocal(
		dialers.WithSocket(socketPath),
		dialers.WithLocalTimeout(timeout),
	)

	l := libvirt.NewWithDialer(dialer)
	if err := l.Connect(); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to libvirt at %s", socketPath)
	}

	return &Client{libvirt: l}, nil
}

// ConnectWithContext is Connect with cancellation.
func ConnectWithContext(ctx context.Context, socketPath string, timeout time.Duration) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := Connect(socketPath, timeout)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		// Close a connection that completes after we gave up on it.
		go func() {
			if res := <-resultCh; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, errors.Wrap(ctx.Err(), "connection cancelled")
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close closes the connection. It is safe to call Close multiple times.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	if err := c.libvirt.Disconnect(); err != nil {
		return errors.Wrap(err, "failed to disconnect from libvirt")
	}
	c.libvirt = nil

	return nil
}

// Libvirt returns the underlying go-libvirt client.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// Ping verifies the connection is still alive.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return errors.New("client not connected")
	}

	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return errors.Wrap(err, "libvirt connection is dead")
	}

	return nil
}

// Hotplug returns a Hotplug operating over this connection.
func (c *Client) Hotplug(log logrus.FieldLogger) *Hotplug {
	return NewHotplug(c.libvirt, log)
}
