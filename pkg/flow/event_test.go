package flow

import (
	"testing"

	"github.com/aretw0/forge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		id   string
		want Event
	}{
		{EncodeID(EventStart, "", ""), Event{Kind: EventStart}},
		{EncodeID(EventCategory, "u1-abc-1", ""), Event{Kind: EventCategory, SessionKey: "u1-abc-1"}},
		{EncodeID(EventPage, "u1-abc-1", pageArg(StepItem, 50)), Event{Kind: EventPage, SessionKey: "u1-abc-1", Step: StepItem, Offset: 50}},
		{EncodeID(EventBack, "k", StepCategory.String()), Event{Kind: EventBack, SessionKey: "k", Step: StepCategory}},
		{EncodeID(EventCommit, "k", "partial"), Event{Kind: EventCommit, SessionKey: "k", Value: "partial"}},
		{EncodeID(EventFormSubmit, "k", "1"), Event{Kind: EventFormSubmit, SessionKey: "k", Index: 1}},
		{EncodeID(EventCancel, "k", ""), Event{Kind: EventCancel, SessionKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := DecodeEvent(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeEvent_Unknown(t *testing.T) {
	for _, id := range []string{
		"",
		"other:start::",
		"forge:start",
		"forge:explode:k:",
		"forge:page:k:item",
		"forge:page:k:nowhere.25",
		"forge:page:k:item.-25",
		"forge:back:k:nowhere",
		"forge:form:k:x",
		"forge:commit:k:maybe",
	} {
		_, err := DecodeEvent(id)
		assert.ErrorIs(t, err, ErrUnknownEvent, id)
	}
}

func TestEventKindNames(t *testing.T) {
	for k := EventStart; k <= EventCancel; k++ {
		parsed, ok := parseKind(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, parsed)
	}
	assert.Equal(t, "unknown", EventKind(-1).String())
	assert.True(t, EventItem.IsSelect())
	assert.False(t, EventCommit.IsSelect())
}

func TestPage(t *testing.T) {
	opts := make([]domain.Option, 60)
	for i := range opts {
		opts[i] = domain.Option{Value: string(rune('a' + i%26))}
	}

	got, start, prev, next := page(opts, 0)
	assert.Len(t, got, MaxOptions)
	assert.Equal(t, 0, start)
	assert.False(t, prev)
	assert.True(t, next)

	got, start, prev, next = page(opts, 50)
	assert.Len(t, got, 10)
	assert.Equal(t, 50, start)
	assert.True(t, prev)
	assert.False(t, next)

	_, start, _, _ = page(opts, 500)
	assert.Equal(t, 50, start, "offsets past the end snap to the last page")

	got, _, prev, next = page(nil, 25)
	assert.Empty(t, got)
	assert.False(t, prev || next)
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw     string
		limit   int
		want    int
		wantErr bool
	}{
		{"", 5, 0, false},
		{"  ", 5, 0, false},
		{"3", 5, 3, false},
		{"9", 5, 5, false},
		{"-2", 5, 0, false},
		{"1.5", 5, 0, true},
		{"abc", 5, 0, true},
	}
	for _, tt := range tests {
		got, err := parseQuantity(tt.raw, tt.limit)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestFormChunks(t *testing.T) {
	reqs := make([]domain.Requirement, 7)
	for i := range reqs {
		reqs[i] = domain.Requirement{Resource: string(rune('A' + i)), Amount: 2}
	}
	assert.Equal(t, 2, formCount(reqs))

	first, start := formChunk(reqs, 0)
	assert.Len(t, first, 5)
	assert.Equal(t, 0, start)

	second, start := formChunk(reqs, 1)
	assert.Len(t, second, 2)
	assert.Equal(t, 5, start)

	none, _ := formChunk(reqs, 2)
	assert.Empty(t, none)

	form := buildForm("k", domain.Payload{Requirements: reqs}, 1)
	require.Len(t, form.Fields, 2)
	assert.Equal(t, "r5", form.Fields[0].ID)
	assert.Equal(t, "r6", form.Fields[1].ID)
}
