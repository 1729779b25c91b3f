// Package auth decides whether a gate attempt may open the door.
//
// The Engine runs each attempt through a fixed precedence of checks: the
// service-wide failure budget, the session block, the client (IP plus
// fingerprint) block, the federated identity policy, the PIN format rules,
// and finally the effective credential table. Every failed attempt feeds
// all three failure scopes in the Tracker and earns a progressive delay
// that doubles per session failure up to a cap; crossing a scope's budget
// starts a timed block. A success clears the client and session scopes but
// never the global one.
//
// Evaluation fails closed: a panic or unreadable credential store produces
// an EXCEPTION denial, never a grant.
package auth
