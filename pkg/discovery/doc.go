// Package discovery implements mDNS/DNS-SD discovery of cast devices.
//
// Cast devices advertise a single service type on the local network:
//
// # Cast discovery (_googlecast._tcp)
//
// Every device (and every virtual group device) advertises one instance.
// TXT records include: id (device UUID, no dashes or with, both seen in
// the wild), md (model name), fn (friendly name).
//
// Speaker groups advertise with the reserved model name
// "Google Cast Group"; a group is discovered like any other device and
// carries its own UUID.
//
// # De-duplication
//
// The same physical device can be announced repeatedly and under more
// than one service instance name. The Listener merges announcements by
// device UUID, accumulating the set of service names, and forwards every
// merged result to its callback. Announcements that cannot be resolved
// to a UUID are dropped: an unidentifiable device can never be managed.
//
// # Layers
//
// Browser and Resolver abstract the transport: MDNSBrowser implements
// both on top of zeroconf, and tests substitute channel-backed doubles.
// Listener owns de-duplication and callback dispatch and is
// transport-agnostic.
package discovery
