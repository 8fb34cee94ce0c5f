// Package suota implements the software update backend fed by the serial
// protocol: it receives an image in patch sized blocks, verifies it and
// commits it to an image store.
package suota
