// Package sim provides the discrete-event simulation engine for a tandem
// queueing network: two stages in series sharing a single server, each with
// an unbounded FIFO buffer and exponential service.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - event.go, scheduler.go: events and the EventScheduler (linear scan or heap)
//   - customer.go: per-customer wait/service timestamps and the epoch tag
//   - engine.go: the state machine, service assignment and stage-1 preemption
//   - controller.go: batch-means rounds and the batch-size doubling loop
//
// # Architecture
//
// Estimators and supporting models live in sub-packages:
//   - sim/stats/: Sample (discrete) and TimeIntegral (occupancy) estimators,
//     confidence intervals via gonum quantiles
//   - sim/analytic/: closed-form M/M/1 reference values for stage 1
//   - sim/trace/: round, preemption and attempt records
//
// # Rounds and epochs
//
// Every call to Engine.SimulateRound opens a new epoch. Only customers that
// arrive during that epoch are sampled and counted toward the round's batch
// size; customers left over from earlier rounds drain normally but are
// excluded, which keeps consecutive batches from sharing observations.
package sim
