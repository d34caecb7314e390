// Package multizone tracks which device sessions subscribe to which
// speaker group's status feed and fans group updates out to them.
//
// A speaker group is a virtual cast device with its own control channel.
// Rather than every member session opening its own connection to the
// group, the Manager opens one shared client per group lazily when the
// first member subscribes and releases it when the last member leaves.
// Control calls routed to a group go through the shared client's media
// controller, obtained via GetMultizoneMediaController.
package multizone
