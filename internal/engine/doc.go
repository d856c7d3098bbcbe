// Package engine runs one city cycle end to end.
//
// A cycle is a single pass over the ledgers:
//
//  1. Load every collection and replay cycle-start state (live arcs,
//     hooks, cooldowns).
//  2. Make sure every collection carries its header.
//  3. Decay cooldowns with the calendar's boosted domains, then age,
//     decay, expire and archive hooks.
//  4. Run the generators in registration order. Generators mutate state
//     only through the lifecycles on State, which queue WriteIntents.
//  5. Queue the cooldown table replace and the cycle log row.
//  6. Flush once. In dry-run and replay modes the flush only plans.
//
// Nothing is written before step 6. If any step fails the execution
// context is aborted and the store is left untouched.
//
// The engine is single-threaded. Running two cycles against the same store
// concurrently is not supported.
package engine
