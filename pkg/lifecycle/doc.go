/*
Package lifecycle tracks, per owner, which UI fragments are currently on screen
and tears them down selectively.

Each owner has a fixed five-level hierarchy:

	L0 root     long-lived home surface, never cleared here
	L1 header   names the active top-level flow
	L2 anchor   primary navigation the user returns to
	L3 submenu  action-specific prompt, replaced on every new action
	L4 output   results, replaced on every refresh

Clearing "from level N" removes every fragment at levels >= N. RenderLevel
bundles the clear with the render and the subsequent tracking so callers can't
forget the clear step. It sends first and swaps the tracked set only after a
successful send, so a failed render leaves the previous prompt on screen.
*/
package lifecycle
