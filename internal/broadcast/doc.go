// Package broadcast implements the subscription registry, the per-connection session state
// machine and the fan-out engine that delivers newTransaction frames to subscribers.
//
// The Registry is the only shared mutable structure. A single RWMutex guards the topic map and
// every session's subscription list, so membership in the map and a session's own list change
// together. Broadcasts copy the subscriber slice under the read lock and send outside it.
// Sessions never block the broadcaster: delivery is a non-blocking hand-off to the transport.
package broadcast
