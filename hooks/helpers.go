package hooks

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/zlnvch/notesync/models"
)

// Entry is what the list helpers need from a note. Both models.Note and
// models.TeamNote satisfy it.
type Entry interface {
	Text() string
	Created() time.Time
	Updated() time.Time
}

type SortKey string

const (
	SortUpdated SortKey = "updated"
	SortCreated SortKey = "created"
	SortTitle   SortKey = "title"
)

func ParseSortKey(s string) (SortKey, bool) {
	switch SortKey(s) {
	case SortUpdated, SortCreated, SortTitle:
		return SortKey(s), true
	}
	return SortUpdated, false
}

func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// SearchNotes keeps the notes whose body contains query, ignoring case. An
// empty query keeps everything.
func SearchNotes[T Entry](notes []T, query string) []T {
	if query == "" {
		return slices.Clone(notes)
	}
	q := fold(query)
	out := make([]T, 0, len(notes))
	for _, n := range notes {
		if strings.Contains(fold(n.Text()), q) {
			out = append(out, n)
		}
	}
	return out
}

// SortNotes returns a sorted copy. Dates sort newest first; titles sort
// alphabetically by their list title.
func SortNotes[T Entry](notes []T, by SortKey) []T {
	out := slices.Clone(notes)
	switch by {
	case SortCreated:
		slices.SortStableFunc(out, func(a, b T) int { return b.Created().Compare(a.Created()) })
	case SortTitle:
		col := collate.New(language.Und, collate.IgnoreCase)
		slices.SortStableFunc(out, func(a, b T) int {
			return col.CompareString(models.ListTitle(a.Text()), models.ListTitle(b.Text()))
		})
	default:
		slices.SortStableFunc(out, func(a, b T) int { return b.Updated().Compare(a.Updated()) })
	}
	return out
}

// RecentNotes returns the n most recently updated notes.
func RecentNotes[T Entry](notes []T, n int) []T {
	sorted := SortNotes(notes, SortUpdated)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// FilterTeams keeps the teams whose name contains query, ignoring case.
func FilterTeams(teams []models.Team, query string) []models.Team {
	if query == "" {
		return slices.Clone(teams)
	}
	q := fold(query)
	out := make([]models.Team, 0, len(teams))
	for _, t := range teams {
		if strings.Contains(fold(t.Name), q) {
			out = append(out, t)
		}
	}
	return out
}

// MemberRole is userId's role in the team, "member" when not listed.
func MemberRole(members []models.TeamMember, userId string) string {
	for _, m := range members {
		if m.UserId == userId && m.Role != "" {
			return m.Role
		}
	}
	return models.RoleMember
}

func IsOwner(members []models.TeamMember, userId string) bool {
	return MemberRole(members, userId) == models.RoleOwner
}
