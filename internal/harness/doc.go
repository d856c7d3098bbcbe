// Package harness runs scripted multi-cycle scenarios against the engine.
//
// A scenario is a YAML file naming the engine settings, optional seed
// grids, and a list of cycles. Each cycle lists steps for a single scripted
// generator (create, advance and resolve arcs; create and pick up hooks;
// apply cooldowns) and assertions evaluated against the stored ledgers once
// the cycle has flushed:
//
//	name: harbor
//	description: One arc through one cycle
//	cycles:
//	  - cycle: 1
//	    steps:
//	      - create_arc: {id: CIVIC-PIER, type: civic, tension: 2.5}
//	    expect:
//	      - {type: arc_phase, arc: CIVIC-PIER, phase: early}
//
// Every scenario runs in a fresh memory store with a fixed run ID,
// sequential entity IDs and a fixed clock, so the flush plans it produces
// are byte-stable. RunWithGolden compares those plans against golden files
// under testdata/golden.
//
// The same scripted generator backs the CLI demo, where it runs against
// the configured store instead of memory.
package harness
