package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{STATUS_DRAFT, STATUS_DRAFT, true},
		{STATUS_DRAFT, STATUS_PUBLISHED, true},
		{STATUS_DRAFT, STATUS_DELETED, true},
		{STATUS_DRAFT, STATUS_IN_PROGRESS, false},
		{STATUS_PUBLISHED, STATUS_UNPUBLISHED, true},
		{STATUS_PUBLISHED, STATUS_IN_PROGRESS, true},
		{STATUS_PUBLISHED, STATUS_EXPIRED, true},
		{STATUS_PUBLISHED, STATUS_DRAFT, false},
		{STATUS_UNPUBLISHED, STATUS_PUBLISHED, true},
		{STATUS_IN_PROGRESS, STATUS_SUBMITTED, true},
		{STATUS_IN_PROGRESS, STATUS_CONFIRMED, false},
		{STATUS_SUBMITTED, STATUS_CONFIRMED, true},
		{STATUS_CONFIRMED, STATUS_COMPLETED, true},
		{STATUS_DELETED, STATUS_PUBLISHED, false},
		{STATUS_COMPLETED, STATUS_PUBLISHED, false},
		{STATUS_EXPIRED, STATUS_PUBLISHED, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.allowed, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTerminalStatusesHaveNoSuccessors(t *testing.T) {
	all := []Status{
		STATUS_DRAFT, STATUS_PUBLISHED, STATUS_UNPUBLISHED, STATUS_DELETED,
		STATUS_IN_PROGRESS, STATUS_SUBMITTED, STATUS_CONFIRMED, STATUS_COMPLETED, STATUS_EXPIRED,
	}
	for _, terminal := range []Status{STATUS_DELETED, STATUS_COMPLETED, STATUS_EXPIRED} {
		for _, to := range all {
			assert.False(t, CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
}

func TestStampSetsEachTimestampOnce(t *testing.T) {
	var trail Timestamps
	first := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	trail.Stamp(STATUS_PUBLISHED, first)
	require.NotNil(t, trail.PublishedAt)
	assert.Equal(t, first, *trail.PublishedAt)
	assert.Equal(t, first, trail.UpdatedAt)

	trail.Stamp(STATUS_PUBLISHED, second)
	assert.Equal(t, first, *trail.PublishedAt)
	assert.Equal(t, second, trail.UpdatedAt)

	trail.Stamp(STATUS_UNPUBLISHED, second)
	require.NotNil(t, trail.UnpublishedAt)
	assert.Equal(t, second, *trail.UnpublishedAt)
	assert.Equal(t, first, *trail.PublishedAt)
}

func TestPairedHelper(t *testing.T) {
	task := Task{Helpers: []Helper{
		{HelperId: "a", Status: HELPER_REJECTED},
		{HelperId: "b", Status: HELPER_PAIRED},
		{HelperId: "c", Status: HELPER_APPLIED},
	}}
	paired, ok := task.PairedHelper()
	assert.Equal(t, true, ok)
	assert.Equal(t, UserId("b"), paired)

	none := Task{Helpers: []Helper{{HelperId: "a", Status: HELPER_APPLIED}}}
	_, ok = none.PairedHelper()
	assert.Equal(t, false, ok)
}
