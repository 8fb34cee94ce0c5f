// Package transport adapts byte streams to the polling transports served
// by a suoserial.Session.
package transport
