// Package castv2 defines the client contract for the CASTV2 control
// channel to a cast device.
//
// The wire protocol itself is not implemented here; castbridge consumes
// it through the Client interface, which a protocol library (or a test
// double) implements. The package provides:
//
//   - Client: a persistent control connection to one device, delivering
//     asynchronous receiver, connection and media status callbacks.
//   - MediaController: the playback command surface of a connection.
//   - Dialer: factory for Clients, injected so the network layer can be
//     replaced in tests without monkey-patching.
//   - Status types mirroring the receiver's reported state: MediaStatus,
//     CastStatus and ConnectionStatus.
//
// # Status delivery
//
// Implementations deliver connection, cast and media status callbacks in
// the order the transport emits them, without coalescing. Callbacks must
// not block; heavy work belongs to the listener.
//
// # Reconnection
//
// Clients own their reconnect/backoff behaviour. Consumers only observe
// the resulting ConnectionStatus transitions (CONNECTED, LOST, ...).
package castv2
