/*
Package forge is a chat bot that walks players through a crafting request:
character, category, subcategory, item and the resources they will supply.

The whole conversation happens in transient UI fragments (messages carrying
select menus, buttons and modal forms) delivered on a private surface (a DM) or,
when that is closed, an ephemeral per-owner channel. Stale prompts are deleted
as the user moves forward, backward or between flows, so the surface only ever
shows the current step.

# Key Concepts

  - Session: the in-progress selection, keyed by an opaque capability key and
    reaped after its TTL (pkg/session).
  - Surface: where an owner's UI is drawn, chosen by the delivery resolver
    (pkg/delivery).
  - Level: the five-tier UI hierarchy (root, header, anchor, submenu, output).
    Rendering at a level first tears down that level and everything below it
    (pkg/lifecycle).
  - Engine: the selection state machine that turns decoded UI events into
    renders and, at the end, one durable record (pkg/flow).

# Usage

	cfg, err := config.Load("forge.yaml")
	if err != nil {
		log.Fatal(err)
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		log.Fatal(err)
	}

	bot, err := forge.New(cfg, discord.NewProvisioner(session, discord.WithGuild(cfg.Discord.GuildID)))
	if err != nil {
		log.Fatal(err)
	}
	defer bot.Close()

	if err := bot.Start(ctx); err != nil {
		log.Fatal(err)
	}
	gateway := discord.NewGateway(session, bot.Engine)
	if err := gateway.Open(ctx); err != nil {
		log.Fatal(err)
	}

The forge command (cmd/forge) does exactly this and adds the admin HTTP server.
*/
package forge
