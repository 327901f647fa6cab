/*
Package domain holds the graph model shared by both engines.

A Graph is an arena: blocks and ports are addressed by stable handles
(BlockID, PortID) and connections live in a separate, symmetric link table.
Nothing here performs I/O.

# Key Entities

  - Block: ordered ports and settings plus a Capability tag. Computable blocks
    carry a ComputeFunc, Steppable blocks carry a Step.
  - Port: DataFlow or ControlFlow, Source or Sink. Only ports of the same
    class and opposite direction connect; a DataFlow sink holds one link.
  - Graph: the blocks plus named external input and output slots.
  - Snapshot: the persisted view of a procedure instance.

Failed mutations return a *StructuralError wrapping one of the Err* sentinels.
Invalid blocks are a state, not an error: both engines skip them.
*/
package domain
