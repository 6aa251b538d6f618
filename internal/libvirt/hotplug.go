package libvirt

import (
	"context"

	"github.com/digitalocean/go-libvirt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// domainClient defines the libvirt operations needed to hot-plug disks.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
type domainClient interface {
	DomainLookupByName(name string) (libvirt.Domain, error)
	DomainAttachDeviceFlags(dom libvirt.Domain, xml string, flags uint32) error
	DomainDetachDeviceFlags(dom libvirt.Domain, xml string, flags uint32) error
}

// Hotplug plugs attached disks into running domains.
type Hotplug struct {
	client domainClient
	log    logrus.FieldLogger
}

// NewHotplug creates a Hotplug.
func NewHotplug(client domainClient, log logrus.FieldLogger) *Hotplug {
	return &Hotplug{client: client, log: log}
}

// Attach adds the disk described by spec to a running domain. When
// persistent is set the domain's stored definition is updated as well.
func (h *Hotplug) Attach(ctx context.Context, domain string, spec DiskSpec, persistent bool) error {
	return h.modify(ctx, "attach", domain, spec, persistent)
}

// Detach removes the disk described by spec from a running domain.
func (h *Hotplug) Detach(ctx context.Context, domain string, spec DiskSpec, persistent bool) error {
	return h.modify(ctx, "detach", domain, spec, persistent)
}

func (h *Hotplug) modify(ctx context.Context, op, domain string, spec DiskSpec, persistent bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	xml, err := DiskXML(spec)
	if err != nil {
		return err
	}

	dom, err := h.client.DomainLookupByName(domain)
	if err != nil {
		return errors.Wrapf(err, "failed to look up domain %s", domain)
	}

	flags := uint32(libvirt.DomainDeviceModifyLive)
	if persistent {
		flags |= uint32(libvirt.DomainDeviceModifyConfig)
	}

	if op == "attach" {
		err = h.client.DomainAttachDeviceFlags(dom, xml, flags)
	} else {
		err = h.client.DomainDetachDeviceFlags(dom, xml, flags)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to %s %s on domain %s", op, spec.Device, domain)
	}

	h.log.WithFields(logrus.Fields{
		"domain": domain,
		"device": spec.Device,
		"target": spec.Target,
	}).Infof("Hot-plug %s complete", op)
	return nil
}
