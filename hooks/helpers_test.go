package hooks_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zlnvch/notesync/hooks"
	"github.com/zlnvch/notesync/models"
)

func sampleNotes() []models.Note {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []models.Note{
		{Id: "a", Body: "banana bread\nrecipe", CreatedAt: base, UpdatedAt: base.Add(3 * time.Hour)},
		{Id: "b", Body: "Apple pie", CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)},
		{Id: "c", Body: "Crème brûlée notes", CreatedAt: base.Add(2 * time.Hour), UpdatedAt: base.Add(2 * time.Hour)},
	}
}

func ids(notes []models.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Id)
	}
	return out
}

func TestSearchNotes(t *testing.T) {
	notes := sampleNotes()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"Empty Query", "", []string{"a", "b", "c"}},
		{"Case Insensitive", "APPLE", []string{"b"}},
		{"Matches Later Lines", "recipe", []string{"a"}},
		{"Accented", "CRÈME", []string{"c"}},
		{"No Match", "kiwi", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(hooks.SearchNotes(notes, tc.query)))
		})
	}
}

func TestSortNotes(t *testing.T) {
	notes := sampleNotes()

	assert.Equal(t, []string{"a", "c", "b"}, ids(hooks.SortNotes(notes, hooks.SortUpdated)))
	assert.Equal(t, []string{"c", "b", "a"}, ids(hooks.SortNotes(notes, hooks.SortCreated)))
	assert.Equal(t, []string{"b", "a", "c"}, ids(hooks.SortNotes(notes, hooks.SortTitle)))

	// Input is left alone
	assert.Equal(t, []string{"a", "b", "c"}, ids(notes))
}

func TestSortNotes_WorksForTeamNotes(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	notes := []models.TeamNote{
		{Id: "x", Body: "zeta", UpdatedAt: base},
		{Id: "y", Body: "alpha", UpdatedAt: base.Add(time.Minute)},
	}
	sorted := hooks.SortNotes(notes, hooks.SortTitle)
	assert.Equal(t, "y", sorted[0].Id)
	assert.Equal(t, "y", hooks.RecentNotes(notes, 1)[0].Id)
}

func TestRecentNotes(t *testing.T) {
	notes := sampleNotes()
	assert.Equal(t, []string{"a", "c"}, ids(hooks.RecentNotes(notes, 2)))
	assert.Len(t, hooks.RecentNotes(notes, 5), 3)
}

func TestParseSortKey(t *testing.T) {
	key, ok := hooks.ParseSortKey("title")
	assert.True(t, ok)
	assert.Equal(t, hooks.SortTitle, key)

	key, ok = hooks.ParseSortKey("bogus")
	assert.False(t, ok)
	assert.Equal(t, hooks.SortUpdated, key)
}

func TestFilterTeams(t *testing.T) {
	teams := []models.Team{{Id: "1", Name: "Design Crew"}, {Id: "2", Name: "Ops"}}
	assert.Len(t, hooks.FilterTeams(teams, ""), 2)
	filtered := hooks.FilterTeams(teams, "design")
	assert.Len(t, filtered, 1)
	assert.Equal(t, "1", filtered[0].Id)
}

func TestMemberRole(t *testing.T) {
	members := []models.TeamMember{
		{UserId: "owner", Role: models.RoleOwner},
		{UserId: "editor", Role: "editor"},
	}
	assert.Equal(t, models.RoleOwner, hooks.MemberRole(members, "owner"))
	assert.Equal(t, "editor", hooks.MemberRole(members, "editor"))
	assert.Equal(t, models.RoleMember, hooks.MemberRole(members, "stranger"))
	assert.True(t, hooks.IsOwner(members, "owner"))
	assert.False(t, hooks.IsOwner(members, "editor"))
}
