/*
Package ports defines the driven ports (interfaces) the engines talk to.

# Key Interfaces

  - InstanceStore: persists procedure instance snapshots (memory, Redis).
  - ScriptRunner: evaluates user-defined script blocks.
  - DeviceSink: consumes the boolean channel array a device block emits.
  - Watchable: signals that a file-backed schema changed.
*/
package ports
