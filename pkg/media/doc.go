// Package media implements the per-device cast session.
//
// A CastDevice owns exactly one castv2.Client for one discovered device
// and turns the client's asynchronous status callbacks into observable
// state: availability, the latest own media status and, for devices
// that belong to a speaker group, the latest group media status.
//
// # Effective state
//
// A grouped device may have no media session of its own while the group
// is playing. State() resolves what the user should see: an actionable
// own state wins, then the group's state, then own idle, then receiver
// idle (off), then unknown. Control calls follow the same decision -
// when the state came from the group, play/pause/stop/next/previous/
// seek are forwarded to the group's shared controller. PlayMedia is the
// exception: casting new content always targets the device itself.
//
// # Failure diagnostics
//
// When a media session goes idle with reason ERROR, the session logs a
// warning naming the failing content URL, attributed to the configured
// internal, external or TTS base URL when the origins match. This tells
// an operator which configured base URL is unreachable from the cast
// device's network.
package media
