// Package service wires discovery, the device registry and the group
// status manager into one runnable bridge with a Start/Stop lifecycle.
package service
