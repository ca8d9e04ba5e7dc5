package discord

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/forge/pkg/domain"
	"github.com/aretw0/forge/pkg/ports"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Provisioner = (*Provisioner)(nil)

type fakeAPI struct {
	mu       sync.Mutex
	dmClosed bool
	dmErr    error
	channels map[string][]*discordgo.Channel
	created  []discordgo.GuildChannelCreateData
	deleted  []string
	sent     map[string]*discordgo.MessageSend
	next     int
	msgErr   map[string]error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		channels: make(map[string][]*discordgo.Channel),
		sent:     make(map[string]*discordgo.MessageSend),
		msgErr:   make(map[string]error),
	}
}

func (f *fakeAPI) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.dmErr != nil {
		return nil, f.dmErr
	}
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (f *fakeAPI) GuildChannels(guildID string, _ ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[guildID], nil
}

func (f *fakeAPI) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	ch := &discordgo.Channel{ID: "ch" + string(rune('0'+f.next)), Name: data.Name, Type: data.Type, GuildID: guildID}
	f.channels[guildID] = append(f.channels[guildID], ch)
	f.created = append(f.created, data)
	return ch, nil
}

func (f *fakeAPI) ChannelDelete(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, channelID)
	return &discordgo.Channel{ID: channelID}, nil
}

func (f *fakeAPI) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Like Discord, a DM channel opens fine and only the send is refused.
	if f.dmClosed && strings.HasPrefix(channelID, "dm-") {
		return nil, &discordgo.RESTError{
			Response: &http.Response{StatusCode: http.StatusForbidden},
			Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeCannotSendMessagesToThisUser, Message: "Cannot send messages to this user"},
		}
	}
	f.next++
	id := "msg" + string(rune('0'+f.next))
	f.sent[id] = data
	return &discordgo.Message{ID: id, ChannelID: channelID}, nil
}

func (f *fakeAPI) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgErr[messageID]
}

func TestProvisioner_PrivateSurface(t *testing.T) {
	api := newFakeAPI()
	p := NewProvisioner(api)

	s, err := p.OpenPrivateSurface(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, domain.Surface{ID: "dm-42", Kind: domain.SurfacePrivate}, s)

	api.dmErr = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusBadRequest}}
	_, err = p.OpenPrivateSurface(context.Background(), "42")
	assert.Error(t, err)
}

func TestProvisioner_RefusedPrivateSendIsUnavailable(t *testing.T) {
	api := newFakeAPI()
	api.dmClosed = true
	p := NewProvisioner(api)
	ctx := context.Background()

	s, err := p.OpenPrivateSurface(ctx, "42")
	require.NoError(t, err, "Discord opens the DM even when the user blocks messages")

	_, err = p.SendFragment(ctx, s, domain.Fragment{Content: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrChannelUnavailable)

	var rest *discordgo.RESTError
	assert.ErrorAs(t, err, &rest, "the REST error stays inspectable")

	// The same code on a guild channel is not a private refusal.
	_, err = p.SendFragment(ctx, domain.Surface{ID: "dm-lookalike", Kind: domain.SurfaceEphemeral}, domain.Fragment{Content: "hello"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrChannelUnavailable)
}

func TestProvisioner_EphemeralSurfaceIsReused(t *testing.T) {
	api := newFakeAPI()
	p := NewProvisioner(api, WithCategory("cat-1"), WithBotUser("bot"))
	ctx := context.Background()
	origin := domain.EventContext{GuildID: "g1", ChannelID: "general"}

	first, err := p.EphemeralSurface(ctx, "42", origin)
	require.NoError(t, err)
	assert.Equal(t, domain.SurfaceEphemeral, first.Kind)

	again, err := p.EphemeralSurface(ctx, "42", origin)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.Len(t, api.created, 1)
	spec := api.created[0]
	assert.Equal(t, "forge-42", spec.Name)
	assert.Equal(t, "cat-1", spec.ParentID)
	require.Len(t, spec.PermissionOverwrites, 3)
	assert.Equal(t, "g1", spec.PermissionOverwrites[0].ID, "@everyone is denied")
	assert.Equal(t, int64(discordgo.PermissionViewChannel), spec.PermissionOverwrites[0].Deny)
	assert.Equal(t, "42", spec.PermissionOverwrites[1].ID)
}

func TestProvisioner_EphemeralNeedsGuild(t *testing.T) {
	api := newFakeAPI()
	_, err := NewProvisioner(api).EphemeralSurface(context.Background(), "42", domain.EventContext{})
	assert.Error(t, err)

	s, err := NewProvisioner(api, WithGuild("home")).EphemeralSurface(context.Background(), "42", domain.EventContext{})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
}

func TestProvisioner_DeleteSurfaceOnlyEphemeral(t *testing.T) {
	api := newFakeAPI()
	p := NewProvisioner(api)
	ctx := context.Background()

	require.NoError(t, p.DeleteSurface(ctx, domain.Surface{ID: "dm-42", Kind: domain.SurfacePrivate}))
	require.NoError(t, p.DeleteSurface(ctx, domain.Surface{ID: "ch1", Kind: domain.SurfaceEphemeral}))
	assert.Equal(t, []string{"ch1"}, api.deleted)
}

func TestProvisioner_SendAndDelete(t *testing.T) {
	api := newFakeAPI()
	p := NewProvisioner(api)
	ctx := context.Background()
	surface := domain.Surface{ID: "dm-42", Kind: domain.SurfacePrivate}

	ref, err := p.SendFragment(ctx, surface, domain.Fragment{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "dm-42", ref.SurfaceID)
	assert.Equal(t, "hello", api.sent[ref.ID].Content)

	require.NoError(t, p.DeleteFragment(ctx, ref))

	api.msgErr[ref.ID] = &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage}}
	assert.ErrorIs(t, p.DeleteFragment(ctx, ref), domain.ErrFragmentGone)

	api.msgErr[ref.ID] = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	assert.ErrorIs(t, p.DeleteFragment(ctx, ref), domain.ErrFragmentGone)

	api.msgErr[ref.ID] = errors.New("rate limited")
	err = p.DeleteFragment(ctx, ref)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrFragmentGone)
}
