// Package rules implements the distribution and rule engine.
//
// Everything here is a pure function of its configuration parameters and a
// caller-supplied random stream:
//
//   - SampleWeighted draws a key from a category→weight mapping
//   - Stratified resolves a value keyed by (channel, tier) through an
//     explicit ordered fallback
//   - DelayRule draws log-normal inter-visit gaps clamped into a range
//   - Ladder maps cumulative spend onto tier or CLV thresholds
//   - Stream partitions one base seed into independent per-key streams
//
// No function here reads global state; determinism only depends on the
// stream passed in.
package rules
