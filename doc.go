// Package reactor implements MicroReactor: a statically-allocated,
// zero-dynamic-allocation reactive kernel for resource-constrained devices.
//
// Independent entities own finite-state machines and communicate
// exclusively through typed signals, dispatched cooperatively by a
// single-threaded pump per entity. The kernel composes a hierarchical
// state machine, mixins, and a middleware chain around cascading rule
// lookup, and layers a stackless coroutine facility ("flow"), a
// topic-indexed publish/subscribe bus, a framed binary + JSON codec, a
// vote-based power manager, an access-control filter, a cross-chip
// "wormhole" link, a trace ring, and a supervisor on top of that single
// dispatch primitive.
//
// All process-wide state (the entity registry, the bus topic table, the
// ACL table, codec schemas, power locks, the trace ring, wormhole routes)
// lives on an explicit *Kernel value rather than package globals, so
// multiple isolated kernels can coexist in one process.
package reactor
