/*
Package session implements the transient session store that threads state
between the steps of an interaction flow.

Sessions are addressed by opaque, capability-style keys: a flow step that
possesses a key can read and extend the payload, but sessions are never
enumerable by owner, so two concurrent flows started by the same user cannot
clobber each other. Every session expires after a fixed TTL regardless of
explicit deletion; expired sessions are unreachable immediately and are
physically pruned by a periodic reaper rather than on each access.
*/
package session
