/*
Package ports defines the driven ports (interfaces) for the Lattice dispatch core.

These interfaces decouple the dispatcher, the feedback pipeline and the session
manager from concrete transports, rendering engines and lock backends.

# Key Interfaces

  - ActionDispatcher: fire-and-forget delivery used by features and registries.
  - Transport: carries envelopes to and from a remote peer (WebSocket, Redis, stdio, memory).
  - ModelEngine: the rendering engine owning the authoritative model.
  - RootListener: components reacting to the published model root.
  - DistributedLocker: session ownership across replicas.
*/
package ports
