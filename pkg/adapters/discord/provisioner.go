// Package discord binds the flow engine to Discord through discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/forge/internal/logging"
	"github.com/aretw0/forge/pkg/domain"
	"github.com/bwmarrin/discordgo"
)

// API is the subset of *discordgo.Session the provisioner uses.
type API interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// ChannelPrefix names per-owner ephemeral channels: "<prefix>-<ownerID>".
const ChannelPrefix = "forge"

// Provisioner implements ports.Provisioner on Discord.
type Provisioner struct {
	api      API
	botID    string
	guildID  string
	parentID string
	logger   *slog.Logger
}

// ProvisionerOption configures the Provisioner.
type ProvisionerOption func(*Provisioner)

// WithGuild sets the guild used when an interaction arrives outside one (e.g. in a DM).
func WithGuild(guildID string) ProvisionerOption {
	return func(p *Provisioner) {
		p.guildID = guildID
	}
}

// WithCategory places ephemeral channels under a category channel.
func WithCategory(parentID string) ProvisionerOption {
	return func(p *Provisioner) {
		p.parentID = parentID
	}
}

// WithBotUser grants the bot explicit access to the channels it creates.
func WithBotUser(id string) ProvisionerOption {
	return func(p *Provisioner) {
		p.botID = id
	}
}

// WithProvisionerLogger configures a logger.
func WithProvisionerLogger(logger *slog.Logger) ProvisionerOption {
	return func(p *Provisioner) {
		p.logger = logger
	}
}

// NewProvisioner creates a provisioner over api.
func NewProvisioner(api API, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{api: api, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "discord_provisioner")
	return p
}

// ChannelName returns the deterministic ephemeral channel name of an owner.
// Owner ids are immutable, unlike display names.
func ChannelName(ownerID string) string {
	return ChannelPrefix + "-" + strings.ToLower(ownerID)
}

// OpenPrivateSurface opens the DM channel with the owner.
func (p *Provisioner) OpenPrivateSurface(ctx context.Context, ownerID string) (domain.Surface, error) {
	ch, err := p.api.UserChannelCreate(ownerID, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Surface{}, fmt.Errorf("discord: open dm: %w", err)
	}
	return domain.Surface{ID: ch.ID, Kind: domain.SurfacePrivate}, nil
}

// EphemeralSurface finds or creates the owner's private text channel in the guild.
func (p *Provisioner) EphemeralSurface(ctx context.Context, ownerID string, origin domain.EventContext) (domain.Surface, error) {
	guildID := origin.GuildID
	if guildID == "" {
		guildID = p.guildID
	}
	if guildID == "" {
		return domain.Surface{}, errors.New("discord: no guild to create an ephemeral channel in")
	}

	name := ChannelName(ownerID)
	channels, err := p.api.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Surface{}, fmt.Errorf("discord: list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText && ch.Name == name {
			return domain.Surface{ID: ch.ID, Kind: domain.SurfaceEphemeral}, nil
		}
	}

	ch, err := p.api.GuildChannelCreateComplex(guildID, p.channelSpec(guildID, ownerID, name), discordgo.WithContext(ctx))
	if err != nil {
		return domain.Surface{}, fmt.Errorf("discord: create channel: %w", err)
	}
	p.logger.Info("ephemeral channel created", "owner", ownerID, "channel", ch.ID, "guild", guildID)
	return domain.Surface{ID: ch.ID, Kind: domain.SurfaceEphemeral}, nil
}

func (p *Provisioner) channelSpec(guildID, ownerID, name string) discordgo.GuildChannelCreateData {
	const visible = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory
	overwrites := []*discordgo.PermissionOverwrite{
		// The @everyone role shares the guild's id.
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: ownerID, Type: discordgo.PermissionOverwriteTypeMember, Allow: visible},
	}
	if p.botID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: p.botID, Type: discordgo.PermissionOverwriteTypeMember, Allow: visible | discordgo.PermissionManageMessages,
		})
	}
	return discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                "Crafting request in progress",
		ParentID:             p.parentID,
		PermissionOverwrites: overwrites,
	}
}

// DeleteSurface deletes an ephemeral channel. Private channels are left alone.
func (p *Provisioner) DeleteSurface(ctx context.Context, surface domain.Surface) error {
	if surface.Kind != domain.SurfaceEphemeral {
		return nil
	}
	if _, err := p.api.ChannelDelete(surface.ID, discordgo.WithContext(ctx)); err != nil && !isGone(err) {
		return fmt.Errorf("discord: delete channel: %w", err)
	}
	return nil
}

// SendFragment posts a message with the fragment's components.
func (p *Provisioner) SendFragment(ctx context.Context, surface domain.Surface, fragment domain.Fragment) (domain.FragmentRef, error) {
	msg, err := p.api.ChannelMessageSendComplex(surface.ID, MessageSend(fragment), discordgo.WithContext(ctx))
	if err != nil {
		// Discord opens DM channels with anyone; a user who blocks DMs is only
		// detected when the first message is refused.
		if surface.Kind == domain.SurfacePrivate && hasCode(err, discordgo.ErrCodeCannotSendMessagesToThisUser) {
			return domain.FragmentRef{}, fmt.Errorf("discord: send message: %w: %w", domain.ErrChannelUnavailable, err)
		}
		return domain.FragmentRef{}, fmt.Errorf("discord: send message: %w", err)
	}
	return domain.FragmentRef{SurfaceID: surface.ID, ID: msg.ID}, nil
}

// DeleteFragment deletes a message, reporting domain.ErrFragmentGone if it no longer exists.
func (p *Provisioner) DeleteFragment(ctx context.Context, ref domain.FragmentRef) error {
	err := p.api.ChannelMessageDelete(ref.SurfaceID, ref.ID, discordgo.WithContext(ctx))
	switch {
	case err == nil:
		return nil
	case isGone(err):
		return domain.ErrFragmentGone
	default:
		return fmt.Errorf("discord: delete message: %w", err)
	}
}

func hasCode(err error, code int) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Message != nil && rest.Message.Code == code
}

// isGone reports whether err says the message or channel does not exist.
func isGone(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
			return true
		}
	}
	return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}
