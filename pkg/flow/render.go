package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/forge/pkg/domain"
)

const (
	// MaxOptions is the platform cap on options per select prompt.
	MaxOptions = 25
	// FormCapacity is the platform cap on inputs per modal form.
	FormCapacity = 5
)

// page returns the slice of options starting at offset and whether
// earlier or later pages exist. Offsets past the end snap to the last page.
func page(options []domain.Option, offset int) (out []domain.Option, start int, prev, next bool) {
	switch {
	case offset < 0 || len(options) == 0:
		offset = 0
	case offset >= len(options):
		offset = ((len(options) - 1) / MaxOptions) * MaxOptions
	}
	end := offset + MaxOptions
	if end > len(options) {
		end = len(options)
	}
	return options[offset:end], offset, offset > 0, end < len(options)
}

func optionsOf(names []string) []domain.Option {
	out := make([]domain.Option, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Option{Label: n, Value: n})
	}
	return out
}

type picker struct {
	kind        EventKind
	step        Step
	key         string
	content     string
	placeholder string
	options     []domain.Option
	offset      int
	back        bool
}

func (p picker) fragment() domain.Fragment {
	opts, start, prev, next := page(p.options, p.offset)

	content := p.content
	if prev || next {
		content += fmt.Sprintf("\n_Showing %d-%d of %d_", start+1, start+len(opts), len(p.options))
	}

	f := domain.Fragment{Content: content}
	if len(opts) == 0 {
		f.Content += "\n_Nothing available here yet._"
	} else {
		f.Select = &domain.Select{
			CustomID:    EncodeID(p.kind, p.key, ""),
			Placeholder: p.placeholder,
			Options:     opts,
		}
	}
	if prev {
		f.Buttons = append(f.Buttons, domain.Button{
			CustomID: EncodeID(EventPage, p.key, pageArg(p.step, start-MaxOptions)),
			Label:    "Previous",
			Style:    domain.ButtonSecondary,
		})
	}
	if next {
		f.Buttons = append(f.Buttons, domain.Button{
			CustomID: EncodeID(EventPage, p.key, pageArg(p.step, start+MaxOptions)),
			Label:    "Next",
			Style:    domain.ButtonSecondary,
		})
	}
	if p.back {
		f.Buttons = append(f.Buttons, domain.Button{
			CustomID: EncodeID(EventBack, p.key, (p.step - 1).String()),
			Label:    "Back",
			Style:    domain.ButtonSecondary,
		})
	}
	f.Buttons = append(f.Buttons, cancelButton(p.key))
	return f
}

func cancelButton(key string) domain.Button {
	return domain.Button{
		CustomID: EncodeID(EventCancel, key, ""),
		Label:    "Cancel",
		Style:    domain.ButtonDanger,
	}
}

func headerFragment() domain.Fragment {
	return domain.Fragment{Content: "**Crafting request**"}
}

func entityPicker(chars []domain.Character, offset int) domain.Fragment {
	opts := make([]domain.Option, 0, len(chars))
	for _, c := range chars {
		opts = append(opts, domain.Option{Label: c.Name, Value: c.ID})
	}
	return picker{
		kind:        EventEntity,
		step:        StepEntity,
		content:     "Which character is requesting?",
		placeholder: "Choose a character",
		options:     opts,
		offset:      offset,
	}.fragment()
}

func noCharactersFragment() domain.Fragment {
	return domain.Fragment{
		Content: "You have no registered characters. Ask an officer to register one, then try again.",
	}
}

func categoryPicker(key string, p domain.Payload, names []string, offset int) domain.Fragment {
	return picker{
		kind:        EventCategory,
		step:        StepCategory,
		key:         key,
		content:     fmt.Sprintf("**%s**: pick a category.", p.CharacterName),
		placeholder: "Category",
		options:     optionsOf(names),
		offset:      offset,
		back:        true,
	}.fragment()
}

func subcategoryPicker(key string, p domain.Payload, names []string, offset int) domain.Fragment {
	return picker{
		kind:        EventSubcategory,
		step:        StepSubcategory,
		key:         key,
		content:     fmt.Sprintf("**%s** › %s: pick a subcategory.", p.CharacterName, p.Category),
		placeholder: "Subcategory",
		options:     optionsOf(names),
		offset:      offset,
		back:        true,
	}.fragment()
}

func itemPicker(key string, p domain.Payload, items []domain.Item, offset int) domain.Fragment {
	opts := make([]domain.Option, 0, len(items))
	for _, it := range items {
		opts = append(opts, domain.Option{
			Label:       it.Name,
			Value:       it.Name,
			Description: summarize(it.Requirements),
		})
	}
	return picker{
		kind:        EventItem,
		step:        StepItem,
		key:         key,
		content:     fmt.Sprintf("**%s** › %s › %s: pick an item.", p.CharacterName, p.Category, p.Subcategory),
		placeholder: "Item",
		options:     opts,
		offset:      offset,
		back:        true,
	}.fragment()
}

// summarize renders requirements on one line, trimmed to the option description limit.
func summarize(reqs []domain.Requirement) string {
	parts := make([]string, 0, len(reqs))
	for _, r := range reqs {
		parts = append(parts, fmt.Sprintf("%d× %s", r.Amount, r.Resource))
	}
	s := strings.Join(parts, ", ")
	if r := []rune(s); len(r) > 100 {
		s = string(r[:97]) + "..."
	}
	return s
}

func requirementList(reqs []domain.Requirement, provided map[string]int) string {
	if len(reqs) == 0 {
		return "_No resources required._"
	}
	var b strings.Builder
	for _, r := range reqs {
		if provided == nil {
			fmt.Fprintf(&b, "- %d× %s\n", r.Amount, r.Resource)
			continue
		}
		fmt.Fprintf(&b, "- %s: %d/%d\n", r.Resource, provided[r.Resource], r.Amount)
	}
	return strings.TrimRight(b.String(), "\n")
}

func commitmentPrompt(key string, p domain.Payload) domain.Fragment {
	return domain.Fragment{
		Content: fmt.Sprintf("**%s** requests **%s**.\n%s\nWhich resources will you provide?",
			p.CharacterName, p.Item, requirementList(p.Requirements, nil)),
		Buttons: []domain.Button{
			{CustomID: EncodeID(EventCommit, key, string(domain.CommitFull)), Label: "All of them", Style: domain.ButtonSuccess},
			{CustomID: EncodeID(EventCommit, key, string(domain.CommitPartial)), Label: "Some of them", Style: domain.ButtonPrimary},
			{CustomID: EncodeID(EventCommit, key, string(domain.CommitNone)), Label: "None", Style: domain.ButtonSecondary},
			{CustomID: EncodeID(EventBack, key, StepItem.String()), Label: "Back", Style: domain.ButtonSecondary},
			cancelButton(key),
		},
	}
}

// formCount is the number of sequential forms needed for reqs.
func formCount(reqs []domain.Requirement) int {
	return (len(reqs) + FormCapacity - 1) / FormCapacity
}

// formChunk returns the requirements covered by form i and the index of the first one.
func formChunk(reqs []domain.Requirement, i int) ([]domain.Requirement, int) {
	start := i * FormCapacity
	if start >= len(reqs) {
		return nil, start
	}
	end := start + FormCapacity
	if end > len(reqs) {
		end = len(reqs)
	}
	return reqs[start:end], start
}

func fieldID(global int) string {
	return "r" + strconv.Itoa(global)
}

func buildForm(key string, p domain.Payload, i int) *domain.Form {
	chunk, start := formChunk(p.Requirements, i)
	form := &domain.Form{
		CustomID: EncodeID(EventFormSubmit, key, strconv.Itoa(i)),
		Title:    fmt.Sprintf("Resources you provide (%d/%d)", i+1, formCount(p.Requirements)),
	}
	for j, r := range chunk {
		field := domain.FormField{
			ID:          fieldID(start + j),
			Label:       fmt.Sprintf("%s (0-%d)", r.Resource, r.Amount),
			Placeholder: "0",
		}
		if v, ok := p.Provided[r.Resource]; ok && v > 0 {
			field.Value = strconv.Itoa(v)
		}
		form.Fields = append(form.Fields, field)
	}
	return form
}

func formPrompt(key string, p domain.Payload) domain.Fragment {
	n := formCount(p.Requirements)
	return domain.Fragment{
		Content: fmt.Sprintf("**%s**: declare what you provide (form %d of %d).\n%s",
			p.Item, p.FormIndex+1, n, requirementList(p.Requirements, p.Provided)),
		Buttons: []domain.Button{
			{
				CustomID: EncodeID(EventFormOpen, key, strconv.Itoa(p.FormIndex)),
				Label:    fmt.Sprintf("Open form %d/%d", p.FormIndex+1, n),
				Style:    domain.ButtonPrimary,
			},
			{CustomID: EncodeID(EventBack, key, StepCommitment.String()), Label: "Back", Style: domain.ButtonSecondary},
			cancelButton(key),
		},
	}
}

func confirmationFragment(rec domain.Record, id string) domain.Fragment {
	var summary string
	switch {
	case rec.NothingProvided() && len(rec.Resources) > 0:
		summary = "You provide nothing; every resource is requested."
	case rec.FullyProvided():
		summary = "You provide every resource."
	default:
		summary = "You provide part of the resources:"
	}
	provided := make(map[string]int, len(rec.Resources))
	reqs := make([]domain.Requirement, 0, len(rec.Resources))
	for _, l := range rec.Resources {
		provided[l.Resource] = l.Provided
		reqs = append(reqs, domain.Requirement{Resource: l.Resource, Amount: l.Required})
	}
	return domain.Fragment{
		Content: fmt.Sprintf("✅ Request `%s` recorded: **%s** for **%s** (%s › %s).\n%s\n%s",
			shortID(id), rec.Item, rec.CharacterName, rec.Category, rec.Subcategory,
			summary, requirementList(reqs, provided)),
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func messageFragment(text string) domain.Fragment {
	return domain.Fragment{Content: text}
}

func expiredFragment() domain.Fragment {
	return domain.Fragment{
		Content: "This request expired. Please start again.",
		Buttons: []domain.Button{
			{CustomID: EncodeID(EventStart, "", ""), Label: "Restart", Style: domain.ButtonPrimary},
		},
	}
}
