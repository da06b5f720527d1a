package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputRejectsEmptyTitle(t *testing.T) {
	for _, title := range []string{"", "   ", "\t\n"} {
		in := Input{Title: title, Content: "FADE IN:"}
		assert.ErrorIs(t, in.Normalize(), ErrInvalid, "title %q", title)
	}
}

func TestInputDefaultsAndLimits(t *testing.T) {
	in := Input{Title: "  Hold the Line  ", Genre: "WAR"}
	require.NoError(t, in.Normalize())
	assert.Equal(t, "Hold the Line", in.Title)
	assert.Equal(t, "war", in.Genre)
	assert.Equal(t, VisibilityPrivate, in.Visibility)

	in = Input{Title: "x"}
	require.NoError(t, in.Normalize())
	assert.Equal(t, "drama", in.Genre)

	long := Input{Title: strings.Repeat("é", MaxTitle+1)}
	assert.ErrorIs(t, long.Normalize(), ErrInvalid)

	assert.ErrorIs(t, (&Input{Title: "x", Genre: "opera"}).Normalize(), ErrInvalid)
	assert.ErrorIs(t, (&Input{Title: "x", Visibility: "friends"}).Normalize(), ErrInvalid)
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount(""))
	assert.Equal(t, 0, PageCount("  \n\n"))
	assert.Equal(t, 1, PageCount("FADE IN:"))
	assert.Equal(t, 1, PageCount(strings.Repeat("line\n", LinesPerPage)))
	assert.Equal(t, 2, PageCount(strings.Repeat("line\n", LinesPerPage+1)))
}

func TestCanRead(t *testing.T) {
	owner := Viewer{UserID: 1}
	member := Viewer{UserID: 2}
	anon := Viewer{}
	admin := Viewer{UserID: 3, IsAdmin: true}

	private := &Script{OwnerID: 1, Visibility: VisibilityPrivate}
	members := &Script{OwnerID: 1, Visibility: VisibilityMembers}
	public := &Script{OwnerID: 1, Visibility: VisibilityPublic}

	assert.True(t, private.CanRead(owner))
	assert.True(t, private.CanRead(admin))
	assert.False(t, private.CanRead(member))
	assert.False(t, private.CanRead(anon))

	assert.True(t, members.CanRead(member))
	assert.False(t, members.CanRead(anon))

	assert.True(t, public.CanRead(anon))
}

func TestVisibleLevels(t *testing.T) {
	assert.Len(t, visibleLevels(Viewer{UserID: 5}, 5), 3)
	assert.Len(t, visibleLevels(Viewer{UserID: 9, IsAdmin: true}, 5), 3)
	assert.Equal(t, []string{VisibilityMembers, VisibilityPublic}, visibleLevels(Viewer{UserID: 6}, 5))
	assert.Equal(t, []string{VisibilityPublic}, visibleLevels(Viewer{}, 5))
}
