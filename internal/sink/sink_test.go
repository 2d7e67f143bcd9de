package sink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivesyncd/internal/download"
)

func TestGroupFilesSplitsAtMaxGroupSize(t *testing.T) {
	files := make([]download.LocalFile, 25)
	groups := groupFiles(files)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0], 10)
	assert.Len(t, groups[1], 10)
	assert.Len(t, groups[2], 5)
}

func TestGroupFilesEmptyInputYieldsNoGroups(t *testing.T) {
	assert.Empty(t, groupFiles(nil))
}

func TestCaptionFirstGroupHasNoPartSuffix(t *testing.T) {
	p := MediaGroupParams{
		Handle:   "someone",
		PostURL:  "https://x.com/someone/status/1",
		PostedAt: time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC),
	}
	c := caption(p, 0)
	assert.Equal(t, "@someone\n2026-07-29T10:00:00Z\nhttps://x.com/someone/status/1", c)
}

func TestCaptionLaterGroupHasPartSuffix(t *testing.T) {
	p := MediaGroupParams{
		Handle:   "someone",
		PostURL:  "https://x.com/someone/status/1",
		PostedAt: time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC),
	}
	c := caption(p, 1)
	assert.Contains(t, c, "[part 2]")
}

func TestFakeSendMediaGroupRecordsGroupsAndAssignsMessageIDs(t *testing.T) {
	f := NewFake()
	files := make([]download.LocalFile, 12)
	for i := range files {
		files[i].Path = "file.jpg"
	}

	result, err := f.SendMediaGroup(context.Background(), MediaGroupParams{Handle: "a", Files: files})
	require.NoError(t, err)
	assert.Len(t, result.MessageIDs, 12)
	assert.Len(t, f.SentGroups, 2)
}

func TestFakeSendMediaGroupReturnsConfiguredError(t *testing.T) {
	f := NewFake()
	f.SendErr = assert.AnError

	_, err := f.SendMediaGroup(context.Background(), MediaGroupParams{Files: []download.LocalFile{{}}})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, f.SentGroups)
}
