/*
Package flow implements the crafting-request selection state machine.

A flow walks the owner through character → category → subcategory → item →
commitment and ends by writing one durable record. Each step is triggered by a
single inbound UI event; every event except the first carries the key of the
session holding what was chosen so far.

# Key Concepts

  - Events: a closed set of kinds decoded once from opaque control identifiers
    (see EncodeID and DecodeEvent). Engine.Handle switches on the kind.
  - Rendering: every prompt replaces its hierarchy level and everything below
    it through lifecycle.Tracker.RenderLevel, so stale submenus never survive
    navigation.
  - Commitment: partial contributions are collected through sequential modal
    forms of at most FormCapacity fields; the form index lives in the session
    payload, so resuming is just another event.
  - Finalization: a duplicate check and the record write run under a lock
    keyed by (owner, character, category, item).

Handle never returns an error. Expired sessions, rejected choices, duplicate
submissions and delivery failures are reported through Response.Outcome with a
short message for the owner.
*/
package flow
