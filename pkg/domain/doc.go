/*
Package domain contains the core domain models shared by the forge engine.

It defines the vocabulary of the interaction flow: hierarchy levels, delivery
surfaces, UI fragments and forms, the session payload threaded between steps,
and the durable request record produced on finalization. This package is kept
pure and free of external dependencies like I/O or persistence, following
Hexagonal Architecture principles.

# Key Entities

  - Level: One of the five fixed tiers of a user's on-screen UI (root to output).
  - Surface: Where fragments are delivered (private 1:1 or ephemeral group).
  - Fragment / Form: Platform-neutral descriptions of what to render.
  - Session / Payload: Transient keyed state carried between flow steps.
  - Record: The durable crafting request written when a flow finalizes.
*/
package domain
