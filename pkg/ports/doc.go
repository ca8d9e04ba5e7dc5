/*
Package ports defines the driven ports (interfaces) for the forge engine.

These interfaces decouple the flow core from external implementations, allowing
the engine to work with various session backends, chat platforms, and record
stores.

# Key Interfaces

  - SessionStore: Persists transient session records between flow steps.
  - DistributedLocker: Provides distributed locking for concurrent access across replicas.
  - Provisioner: Opens delivery surfaces and sends/deletes UI fragments.
  - RecordStore: Durable business records (requests, registered characters).
  - Catalog: Read-only description of craftable items.
*/
package ports
