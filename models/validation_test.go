package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/notesync/errors"
	"github.com/zlnvch/notesync/models"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     any
		wantErr bool
		field   string
	}{
		{"Valid Note", models.CreateNoteRequest{Body: "hi", UserId: "u1"}, false, ""},
		{"Blank Note Body", models.CreateNoteRequest{Body: "  \n\t", UserId: "u1"}, true, "body"},
		{"Empty Update Body", models.UpdateNoteRequest{NoteId: "n1", Body: ""}, true, "body"},
		{"Missing Note Id", models.UpdateNoteRequest{Body: "x"}, true, "note_id"},
		{"Blank Team Name", models.CreateTeamRequest{Name: " ", UserId: "u1"}, true, "team_name"},
		{"Bad Email", models.Credentials{Email: "nope", Password: "pw"}, true, "email"},
		{"Valid Credentials", models.Credentials{Email: "a@b.co", Password: "pw"}, false, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := models.Validate(tc.req)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrValidation)

			var vErr *errors.Error
			require.True(t, errors.As(err, &vErr))
			details, ok := vErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tc.field)
		})
	}
}
