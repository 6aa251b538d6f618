package libvirt

import (
	"fmt"
	"io"

	"github.com/digitalocean/go-libvirt"
	"github.com/sirupsen/logrus"
)

// mockDomainClient is a mock implementation of the domainClient interface for testing.
type mockDomainClient struct {
	// Configurable behavior
	domains   map[string]bool
	attachErr error
	detachErr error

	// Call tracking
	attachCalls []deviceCall
	detachCalls []deviceCall
}

type deviceCall struct {
	domain string
	xml    string
	flags  uint32
}

func newMockDomainClient(domains ...string) *mockDomainClient {
	m := &mockDomainClient{domains: make(map[string]bool)}
	for _, d := range domains {
		m.domains[d] = true
	}
	return m
}

func (m *mockDomainClient) DomainLookupByName(name string) (libvirt.Domain, error) {
	if !m.domains[name] {
		return libvirt.Domain{}, fmt.Errorf("domain not found: %s", name)
	}
	return libvirt.Domain{Name: name}, nil
}

func (m *mockDomainClient) DomainAttachDeviceFlags(dom libvirt.Domain, xml string, flags uint32) error {
	m.attachCalls = append(m.attachCalls, deviceCall{domain: dom.Name, xml: xml, flags: flags})
	return m.attachErr
}

func (m *mockDomainClient) DomainDetachDeviceFlags(dom libvirt.Domain, xml string, flags uint32) error {
	m.detachCalls = append(m.detachCalls, deviceCall{domain: dom.Name, xml: xml, flags: flags})
	return m.detachErr
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
