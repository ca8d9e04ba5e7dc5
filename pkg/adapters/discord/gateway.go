package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/forge/internal/logging"
	"github.com/aretw0/forge/pkg/domain"
	"github.com/aretw0/forge/pkg/flow"
	"github.com/bwmarrin/discordgo"
)

// DefaultCommand is the slash command that opens a crafting request.
const DefaultCommand = "request"

// errIgnored marks interactions that belong to someone else.
var errIgnored = errors.New("interaction not handled here")

// Handler runs one decoded event. *flow.Engine implements it.
type Handler interface {
	Handle(ctx context.Context, ev flow.Event) flow.Response
	PendingForm(ctx context.Context, ev flow.Event) *domain.Form
}

// responder is the subset of *discordgo.Session used to answer interactions.
type responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Gateway receives interactions from Discord and feeds them to a Handler.
type Gateway struct {
	session *discordgo.Session
	handler Handler
	guildID string
	command string
	timeout time.Duration
	logger  *slog.Logger
}

// GatewayOption configures the Gateway.
type GatewayOption func(*Gateway)

// WithCommandGuild registers the slash command in one guild instead of globally.
func WithCommandGuild(guildID string) GatewayOption {
	return func(g *Gateway) {
		g.guildID = guildID
	}
}

// WithCommandName overrides the slash command name.
func WithCommandName(name string) GatewayOption {
	return func(g *Gateway) {
		g.command = name
	}
}

// WithHandlerTimeout bounds how long one interaction may take.
func WithHandlerTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// WithGatewayLogger configures a logger.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewSession creates a bot session with the intents the gateway needs.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord: bot token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: creating session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages
	return s, nil
}

// NewGateway creates a gateway over an unopened session.
func NewGateway(session *discordgo.Session, handler Handler, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		session: session,
		handler: handler,
		command: DefaultCommand,
		timeout: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "discord")
	return g
}

// Open connects to the gateway and registers the slash command.
func (g *Gateway) Open(ctx context.Context) error {
	g.session.AddHandler(g.onInteraction)
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	user := g.session.State.User
	cmd := &discordgo.ApplicationCommand{
		Name:        g.command,
		Description: "Open a crafting request",
	}
	if _, err := g.session.ApplicationCommandCreate(user.ID, g.guildID, cmd, discordgo.WithContext(ctx)); err != nil {
		g.session.Close()
		return fmt.Errorf("discord: registering /%s: %w", g.command, err)
	}
	g.logger.Info("discord: connected", "bot", user.Username, "id", user.ID, "command", g.command)
	return nil
}

// Close disconnects from the gateway.
func (g *Gateway) Close() error {
	g.logger.Info("discord: disconnected")
	return g.session.Close()
}

func (g *Gateway) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	g.dispatch(ctx, s, i)
}

func userID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// toEvent decodes an interaction into a flow event.
func toEvent(i *discordgo.InteractionCreate, command string) (flow.Event, error) {
	var (
		ev  flow.Event
		err error
	)
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name != command {
			return flow.Event{}, errIgnored
		}
		ev = flow.Event{Kind: flow.EventStart}
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		ev, err = flow.DecodeEvent(data.CustomID)
		if err != nil {
			return flow.Event{}, err
		}
		if ev.Kind.IsSelect() {
			if len(data.Values) == 0 {
				return flow.Event{}, fmt.Errorf("%w: empty selection", flow.ErrUnknownEvent)
			}
			ev.Value = data.Values[0]
		}
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		ev, err = flow.DecodeEvent(data.CustomID)
		if err != nil {
			return flow.Event{}, err
		}
		ev.Fields = formValues(data)
	default:
		return flow.Event{}, errIgnored
	}

	ev.OwnerID = userID(i)
	if ev.OwnerID == "" {
		return flow.Event{}, errors.New("interaction without a user")
	}
	ev.Origin = domain.EventContext{GuildID: i.GuildID, ChannelID: i.ChannelID}
	return ev, nil
}

func isPartialCommit(ev flow.Event) bool {
	return ev.Kind == flow.EventCommit && ev.Value == string(domain.CommitPartial)
}

func (g *Gateway) dispatch(ctx context.Context, r responder, i *discordgo.InteractionCreate) {
	ev, err := toEvent(i, g.command)
	if errors.Is(err, errIgnored) {
		return
	}
	if err != nil {
		g.logger.Warn("discord: undecodable interaction", "err", err)
		g.respondEphemeral(r, i, "This control is no longer valid. Use /"+g.command+" to start again.")
		return
	}

	switch {
	case i.Type == discordgo.InteractionApplicationCommand:
		if err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		}); err != nil {
			g.logger.Warn("discord: failed to ack command", "err", err)
		}
		resp := g.handler.Handle(ctx, ev)
		content := resp.Message
		if content == "" {
			content = "Your crafting request is open."
		}
		if _, err := r.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
			g.logger.Warn("discord: failed to edit command response", "err", err)
		}

	case isPartialCommit(ev):
		// A modal must be the first answer and arrive within the interaction
		// deadline, so it goes out before the session write and prompt render.
		form := g.handler.PendingForm(ctx, ev)
		if form == nil {
			g.ack(r, i)
			g.followup(r, i, g.handler.Handle(ctx, ev))
			return
		}
		if err := r.InteractionRespond(i.Interaction, ModalResponse(form)); err != nil {
			g.logger.Warn("discord: failed to open form", "err", err)
			return
		}
		g.followup(r, i, g.handler.Handle(ctx, ev))

	case ev.Kind == flow.EventFormOpen:
		resp := g.handler.Handle(ctx, ev)
		if resp.Form != nil {
			if err := r.InteractionRespond(i.Interaction, ModalResponse(resp.Form)); err != nil {
				g.logger.Warn("discord: failed to open form", "err", err)
			}
			return
		}
		g.ack(r, i)
		g.followup(r, i, resp)

	default:
		g.ack(r, i)
		g.followup(r, i, g.handler.Handle(ctx, ev))
	}
}

func (g *Gateway) ack(r responder, i *discordgo.InteractionCreate) {
	if err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		g.logger.Warn("discord: failed to ack interaction", "err", err)
	}
}

// followup tells the owner privately about outcomes that left nothing on the surface.
func (g *Gateway) followup(r responder, i *discordgo.InteractionCreate, resp flow.Response) {
	switch {
	case resp.Outcome == domain.OutcomeFailed, resp.Outcome == domain.OutcomeUnavailable:
	case resp.Outcome == domain.OutcomeFinalized && resp.Message != "":
	default:
		return
	}
	if _, err := r.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Content: resp.Message,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		g.logger.Warn("discord: failed to send followup", "err", err)
	}
}

func (g *Gateway) respondEphemeral(r responder, i *discordgo.InteractionCreate, content string) {
	if err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		g.logger.Warn("discord: failed to respond", "err", err)
	}
}
