package discord

import (
	"github.com/aretw0/forge/pkg/domain"
	"github.com/bwmarrin/discordgo"
)

// Platform limits.
const (
	maxButtonsPerRow = 5
	maxContent       = 2000
	maxOptionLabel   = 100
	maxInputLabel    = 45
	maxModalTitle    = 45
)

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func buttonStyle(s domain.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case domain.ButtonSecondary:
		return discordgo.SecondaryButton
	case domain.ButtonSuccess:
		return discordgo.SuccessButton
	case domain.ButtonDanger:
		return discordgo.DangerButton
	default:
		return discordgo.PrimaryButton
	}
}

// Components lays out a fragment's controls: the select menu on its own row,
// then buttons in rows of five.
func Components(f domain.Fragment) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	if f.Select != nil && len(f.Select.Options) > 0 {
		opts := make([]discordgo.SelectMenuOption, 0, len(f.Select.Options))
		for _, o := range f.Select.Options {
			opts = append(opts, discordgo.SelectMenuOption{
				Label:       truncate(o.Label, maxOptionLabel),
				Value:       o.Value,
				Description: truncate(o.Description, maxOptionLabel),
			})
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    f.Select.CustomID,
				Placeholder: f.Select.Placeholder,
				Options:     opts,
			},
		}})
	}

	var row []discordgo.MessageComponent
	for _, b := range f.Buttons {
		row = append(row, discordgo.Button{
			CustomID: b.CustomID,
			Label:    b.Label,
			Style:    buttonStyle(b.Style),
			Disabled: b.Disabled,
		})
		if len(row) == maxButtonsPerRow {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	return rows
}

// MessageSend converts a fragment into a message payload.
func MessageSend(f domain.Fragment) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    truncate(f.Content, maxContent),
		Components: Components(f),
	}
}

// ModalResponse converts a form into a modal interaction response.
func ModalResponse(form *domain.Form) *discordgo.InteractionResponse {
	rows := make([]discordgo.MessageComponent, 0, len(form.Fields))
	for _, field := range form.Fields {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    field.ID,
				Label:       truncate(field.Label, maxInputLabel),
				Style:       discordgo.TextInputShort,
				Placeholder: field.Placeholder,
				Value:       field.Value,
				Required:    false,
				MaxLength:   6,
			},
		}})
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   form.CustomID,
			Title:      truncate(form.Title, maxModalTitle),
			Components: rows,
		},
	}
}

// formValues extracts submitted text inputs keyed by custom id.
func formValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	out := make(map[string]string)
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if in, ok := inner.(*discordgo.TextInput); ok {
				out[in.CustomID] = in.Value
			}
		}
	}
	return out
}
