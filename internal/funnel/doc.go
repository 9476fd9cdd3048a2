// Package funnel simulates each customer's visits: carts, conversions into
// orders, abandonment, dormancy and reactivation.
//
// A customer's sequence starts time_to_first_cart_days after signup and
// repeats while the propensity draw succeeds. A failed draw makes the
// customer dormant with one reactivation draw; failing that as well ends
// the sequence (Churned). A sequence also ends when the next visit would
// fall past the horizon (Exhausted).
//
// Timestamps never go backwards within a customer: every cart starts after
// the previous visit's last event, and the next visit day is counted in
// whole days from the day of that event.
//
// Earned status is a separate phase. Orders snapshot the tier and CLV
// bucket of the running spend; EarnTiers assigns the final values once all
// customers are done.
package funnel
