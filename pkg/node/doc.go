// Package node implements one participant of the graph-coloring clustering
// protocol: neighbor discovery from periodic beacons, self-stabilizing
// greedy coloring, role derivation (cluster head, member, gateway) and the
// hierarchical data-forwarding engine.
//
// A Node is a sequential actor. Timer firings and inbound frames become
// events on a single queue and are processed one at a time to completion;
// no protocol state is shared across nodes or goroutines. Delayed
// (jittered) transmissions are scheduled on the external Clock and re-enter
// the queue as deferred-send events rather than blocking the actor.
package node
