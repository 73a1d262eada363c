// Package sim hosts the simulations and the loop that drives them.
//
// The set of simulations is closed: an [Agent] is either a [Pendulum]
// (LQR or PID balanced cart-pole) or a [Vehicle] (particle filter
// localization). A [Simulator] advances a collection of agents, records
// their trajectories and feeds the configured metrics. [Simulator.SyncTo]
// copies one agent's state into every agent of the same kind through a
// typed [Snapshot].
//
// Each agent owns its controller, model, filter and random source, so
// simulators may run concurrently; [Ensemble] does that for seeded
// batches.
package sim
