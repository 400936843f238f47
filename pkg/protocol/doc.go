// Package protocol defines the boundary to the device-linking wire protocol.
//
// The actual protocol implementation lives outside this repository; the
// session lifecycle manager only consumes a Client's event stream and calls
// its control methods. A Dialer constructs one Client per connection attempt,
// seeded with whatever credential material a previous attempt persisted.
//
// The package also ships Sim, a scripted in-memory client used as the
// development driver and as the test double for the lifecycle manager.
package protocol
