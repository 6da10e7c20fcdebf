// Package consult implements the consultation orchestration engine: a
// four-round structured debate across independent model-backed agents,
// producing a single confidence-scored recommendation with documented
// dissent.
//
// The engine composes the phase state machine (phase), cost accounting
// (cost), artifact extraction (artifact) and the event bus (event). Within a
// round, agent calls fan out concurrently and join before the round is
// considered complete; across rounds, ordering is strictly sequential and
// enforced by the state machine's edge table. One consultation runs at a
// time per Engine instance.
//
// Failure design:
//   - A failing roster agent yields a response carrying its error and no
//     artifact; peers continue unaffected. A round with zero surviving
//     artifacts aborts the session.
//   - Judge failures (synthesis, cross-exam reduction, verdict) are fatal;
//     there is no fallback judge.
//   - Consent denial at the admission gate is an expected cancellation, not
//     a failure.
//   - After every round the accumulated actual cost is compared against the
//     pre-flight estimate times a fixed tolerance; overruns abort the
//     session even though the overrun itself is already spent.
package consult
