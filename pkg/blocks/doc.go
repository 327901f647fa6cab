/*
Package blocks is the standard block library.

Computable blocks (Constant, Function, Script, GraphInput, GraphOutput,
SubGraph, Device and the arithmetic helpers) return a domain.Definition whose
ComputeFunc maps settings and inputs to outputs.

Steppable blocks (Start, End, Action, Latch, If, Loop, Wait, Call, Fork) carry a
domain.Step the procedure engine activates and executes once per tick.
*/
package blocks
