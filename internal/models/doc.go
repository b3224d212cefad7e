// Package models defines the core domain models for Comanda.
//
// # Models
//
//   - Order: one dining order owned by a table session, with its line items,
//     derived totals and lifecycle status
//   - OrderLine: a single line on an order, owned by one payer or shared by
//     a payer set
//   - TableSession: the period during which a table is occupied by one
//     coordinated group of diners, with its membership roster
//   - Member: one diner in a session (owner or participant), possibly a
//     guest without an account
//   - SplitPayment: one payer's portion of a split order, settled
//     independently via an expiring pay link
//   - Staff: a restaurant staff account (waiter, kitchen, manager)
//
// # Design principles
//
//  1. All monetary fields are money.Cents (integer minor units); totals are
//     derived and recomputed, never patched incrementally
//  2. Models hold ID strings instead of pointers for cross-entity
//     relationships, avoiding circular references
//  3. Timestamps are Unix seconds; zero means "not yet happened"
package models
