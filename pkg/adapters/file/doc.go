// Package file backs weave projects with the local filesystem: YAML project
// files, a watcher that reports edits to them, and a JSON snapshot store.
//
// A project file declares the top-level graph and any number of procedures:
//
//	name: greenhouse
//	inputs:
//	  - {name: target, type: number, default: 21}
//	outputs:
//	  - {name: heater, type: bool}
//	blocks:
//	  - {name: target, kind: input, settings: {slot: target}}
//	  - {name: sensor, kind: subgraph, settings: {file: sensor.yaml}}
//	  - {name: cold, kind: greater}
//	  - {name: heater, kind: output, settings: {slot: heater}}
//	links:
//	  - {from: target.value, to: cold.a}
//	  - {from: sensor.celsius, to: cold.b}
//	  - {from: cold.result, to: heater.value}
//	procedures:
//	  purge:
//	    blocks: [...]
//	    links: [...]
package file
