package clienttest

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zlnvch/notesync/models"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if !decode(w, r, &creds) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[creds.Email]; exists {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	s.addUserLocked(creds.Email, creds.Password)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if !decode(w, r, &creds) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[creds.Email]
	if !ok || acc.password != creds.Password {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:        s.issueAccessLocked(acc.user.Id),
		RefreshToken: s.issueRefreshLocked(acc.user.Id),
		Id:           acc.user.Id,
		Email:        acc.user.Email,
		CreatedAt:    acc.user.CreatedAt,
		UpdatedAt:    acc.user.UpdatedAt,
		HasPremium:   acc.user.HasPremium,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, delay := s.refreshStatus, s.refreshDelay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		writeError(w, status, "refresh rejected")
		return
	}

	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	userId, ok := s.refreshTokens[token]
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	writeJSON(w, http.StatusOK, models.RefreshResponse{Token: s.issueAccessLocked(userId)})
}

// SetRefreshStatus makes later refresh calls fail with status (0 restores).
func (s *Server) SetRefreshStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
}

// SetRefreshDelay holds refresh responses back to widen race windows.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.accessTokens, token)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if !decode(w, r, &creds) {
		return
	}
	userId := userIdFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	for email, acc := range s.accounts {
		if acc.user.Id != userId {
			continue
		}
		delete(s.accounts, email)
		acc.user.Email = creds.Email
		acc.user.UpdatedAt = s.tickLocked()
		acc.password = creds.Password
		s.accounts[creds.Email] = acc
		writeJSON(w, http.StatusOK, acc.user)
		return
	}
	writeError(w, http.StatusNotFound, "user not found")
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	authorId := r.URL.Query().Get("authorId")
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := []models.Note{}
	for _, note := range s.notes {
		if note.UserId == authorId {
			notes = append(notes, note)
		}
	}
	slices.SortFunc(notes, func(a, b models.Note) int { return a.CreatedAt.Compare(b.CreatedAt) })
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req models.CreateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tickLocked()
	note := models.Note{Id: s.nextIdLocked("note"), Body: req.Body, UserId: req.UserId, CreatedAt: now, UpdatedAt: now}
	s.notes[note.Id] = note
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	note, ok := s.notes[id]
	if !ok {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	note.Body = req.Body
	note.UpdatedAt = s.tickLocked()
	s.notes[id] = note
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, ok := s.notes[id]; !ok {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	delete(s.notes, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) isMemberLocked(teamId, userId string) bool {
	return slices.ContainsFunc(s.members[teamId], func(m models.TeamMember) bool { return m.UserId == userId })
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	userId := userIdFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	teams := []models.Team{}
	for _, team := range s.teams {
		if s.isMemberLocked(team.Id, userId) {
			teams = append(teams, team)
		}
	}
	slices.SortFunc(teams, func(a, b models.Team) int { return a.CreatedAt.Compare(b.CreatedAt) })
	writeJSON(w, http.StatusOK, teams)
}

func (s *Server) createTeamLocked(userId, name string, isPrivate bool) models.Team {
	now := s.tickLocked()
	team := models.Team{Id: s.nextIdLocked("team"), Name: name, CreatedBy: userId, IsPrivate: isPrivate, CreatedAt: now, UpdatedAt: now}
	s.teams[team.Id] = team
	s.members[team.Id] = []models.TeamMember{{UserId: userId, TeamId: team.Id, Role: models.RoleOwner}}
	s.teamNotes[team.Id] = make(map[string]models.TeamNote)
	return team
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTeamRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createTeamLocked(req.UserId, req.Name, req.IsPrivate)
	w.WriteHeader(http.StatusCreated)
}

// teamFor looks up the team named in the path and checks the team_id query
// parameter echoes it.
func (s *Server) teamFor(w http.ResponseWriter, r *http.Request, requireQuery bool) (models.Team, bool) {
	id := chi.URLParam(r, "id")
	if requireQuery && r.URL.Query().Get("team_id") != id {
		writeError(w, http.StatusBadRequest, "team_id query parameter mismatch")
		return models.Team{}, false
	}
	team, ok := s.teams[id]
	if !ok {
		writeError(w, http.StatusNotFound, "team not found")
		return models.Team{}, false
	}
	return team, true
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teamFor(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teamFor(w, r, true)
	if !ok {
		return
	}
	delete(s.teams, team.Id)
	delete(s.members, team.Id)
	delete(s.teamNotes, team.Id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teamFor(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, slices.Clone(s.members[team.Id]))
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req models.AddTeamMemberRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teamFor(w, r, true)
	if !ok {
		return
	}
	if s.isMemberLocked(team.Id, req.UserId) {
		writeError(w, http.StatusConflict, "user is already a member")
		return
	}
	s.members[team.Id] = append(s.members[team.Id], models.TeamMember{UserId: req.UserId, TeamId: team.Id, Role: req.Role})
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teamFor(w, r, true)
	if !ok {
		return
	}
	memberId := chi.URLParam(r, "memberId")
	before := len(s.members[team.Id])
	s.members[team.Id] = slices.DeleteFunc(s.members[team.Id], func(m models.TeamMember) bool { return m.UserId == memberId })
	if len(s.members[team.Id]) == before {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createTeamNoteLocked(teamId, userId, body string) models.TeamNote {
	now := s.tickLocked()
	note := models.TeamNote{Id: s.nextIdLocked("tnote"), Body: body, UserId: userId, CreatedAt: now, UpdatedAt: now}
	if s.teamNotes[teamId] == nil {
		s.teamNotes[teamId] = make(map[string]models.TeamNote)
	}
	s.teamNotes[teamId][note.Id] = note
	return note
}

func (s *Server) handleListTeamNotes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teamFor(w, r, false)
	if !ok {
		return
	}
	notes := []models.TeamNote{}
	for _, note := range s.teamNotes[team.Id] {
		notes = append(notes, note)
	}
	slices.SortFunc(notes, func(a, b models.TeamNote) int { return a.CreatedAt.Compare(b.CreatedAt) })
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleCreateTeamNote(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTeamNoteRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teamFor(w, r, false)
	if !ok {
		return
	}
	s.createTeamNoteLocked(team.Id, req.UserId, req.Body)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) teamNoteFor(w http.ResponseWriter, r *http.Request) (string, models.TeamNote, bool) {
	team, ok := s.teamFor(w, r, false)
	if !ok {
		return "", models.TeamNote{}, false
	}
	note, ok := s.teamNotes[team.Id][chi.URLParam(r, "noteId")]
	if !ok {
		writeError(w, http.StatusNotFound, "note not found")
		return "", models.TeamNote{}, false
	}
	return team.Id, note, true
}

func (s *Server) handleGetTeamNote(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, note, ok := s.teamNoteFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleUpdateTeamNote(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTeamNoteRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	teamId, note, ok := s.teamNoteFor(w, r)
	if !ok {
		return
	}
	note.Body = req.Body
	note.UpdatedAt = s.tickLocked()
	s.teamNotes[teamId][note.Id] = note
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTeamNote(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	teamId, note, ok := s.teamNoteFor(w, r)
	if !ok {
		return
	}
	delete(s.teamNotes[teamId], note.Id)
	w.WriteHeader(http.StatusNoContent)
}
