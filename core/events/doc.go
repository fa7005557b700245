// Package events defines the competition events emitted on the event bus.
//
// Available event types:
//   - SimStart / SimEnd: simulation lifecycle
//   - SimPause / SimResume: clock pauses requested by brokers
//   - TimeslotChanged: one per tick, broadcast to participant modules
//   - ModuleTimeout: a module did not answer a broadcast in time
//   - RoundCompleted: summary of a finished tick
//   - CommandApplied: outcome of a routed command
package events
