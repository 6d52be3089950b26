// Package editor holds the state of one open note: the draft, whether it
// differs from what the server has, and a debounced autosave.
package editor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/rs/zerolog"

	"github.com/zlnvch/notesync/client"
	"github.com/zlnvch/notesync/errors"
	"github.com/zlnvch/notesync/models"
)

type State int

const (
	Loading State = iota
	Ready
	Dirty
	Saving
	Closed
	Error
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	case Closed:
		return "closed"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Format is how the rich-text engine serializes the body.
type Format int

const (
	FormatPlain Format = iota
	FormatHTML
)

const DefaultAutosaveDelay = 3 * time.Second

var (
	ErrClosed      = errors.New("editor session is closed")
	ErrNotEditable = errors.New("note is not editable in its current state")
)

// Confirmer asks the user a yes/no question and blocks for the answer.
type Confirmer interface {
	Confirm(message string) bool
}

type ConfirmFunc func(message string) bool

func (f ConfirmFunc) Confirm(message string) bool { return f(message) }

type Options struct {
	AutosaveDelay time.Duration
	Format        Format
	Confirmer     Confirmer
	Navigator     client.Navigator
	Logger        zerolog.Logger
}

type draft struct {
	body  string
	title string
}

type Session struct {
	source NoteSource
	id     string
	opts   Options
	logger zerolog.Logger

	mu        sync.Mutex
	state     State
	baseline  draft
	draft     draft
	doc       Document
	lastErr   error
	lastSaved time.Time
	timer     *time.Timer
	// deleting suppresses autosave while a delete is being confirmed or sent.
	deleting  bool
	listeners []func(Snapshot)
}

// Snapshot is a point-in-time view of the session for rendering.
type Snapshot struct {
	State             State     `json:"state"`
	Body              string    `json:"body"`
	Title             string    `json:"title"`
	HasUnsavedChanges bool      `json:"hasUnsavedChanges"`
	Error             string    `json:"error,omitempty"`
	LastSaved         time.Time `json:"lastSaved"`
}

// Open loads noteID from source. The returned session is always usable for
// inspection; when loading fails it is in the Error state and the error is
// also returned.
func Open(ctx context.Context, source NoteSource, noteID string, opts Options) (*Session, error) {
	if opts.AutosaveDelay <= 0 {
		opts.AutosaveDelay = DefaultAutosaveDelay
	}
	if opts.Confirmer == nil {
		opts.Confirmer = ConfirmFunc(func(string) bool { return false })
	}
	if opts.Navigator == nil {
		opts.Navigator = client.NavigatorFunc(func(string) {})
	}

	s := &Session{
		source: source,
		id:     noteID,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "editor").Str("noteId", noteID).Logger(),
		state:  Loading,
	}

	if noteID == "" || noteID == "undefined" {
		err := errors.InvalidArgument("Invalid note ID")
		s.fail(err)
		return s, err
	}

	doc, err := source.GetOne(ctx, noteID)
	if err != nil {
		s.fail(err)
		return s, err
	}

	s.mu.Lock()
	s.doc = doc
	s.baseline = draft{body: doc.Body, title: s.deriveTitle(doc.Body)}
	s.draft = s.baseline
	s.lastSaved = doc.UpdatedAt
	s.state = Ready
	s.mu.Unlock()

	s.logger.Debug().Msg("Note opened")
	return s, nil
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = Error
	s.lastErr = err
	s.mu.Unlock()
	s.logger.Warn().Err(err).Msg("Failed to open note")
}

// deriveTitle applies the editor title rule, flattening HTML bodies first.
func (s *Session) deriveTitle(body string) string {
	if s.opts.Format == FormatHTML && body != "" {
		if md, err := htmltomarkdown.ConvertString(body); err == nil {
			body = strings.TrimLeft(strings.TrimSpace(md), "#>*- ")
		}
	}
	return models.DeriveTitle(body)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.body
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.title
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// HasUnsavedChanges reports whether the draft differs from the last loaded
// or saved version.
func (s *Session) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft != s.baseline
}

// BeforeUnload reports whether leaving the app must be blocked.
func (s *Session) BeforeUnload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != Closed && s.draft != s.baseline
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:             s.state,
		Body:              s.draft.body,
		Title:             s.draft.title,
		HasUnsavedChanges: s.draft != s.baseline,
		LastSaved:         s.lastSaved,
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

// Subscribe registers fn for every state transition.
func (s *Session) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) emit() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// SetBody is called on every change notification from the rich-text engine.
func (s *Session) SetBody(body string) error {
	return s.edit(func(d *draft) { d.body = body })
}

func (s *Session) SetTitle(title string) error {
	return s.edit(func(d *draft) { d.title = title })
}

func (s *Session) edit(apply func(d *draft)) error {
	s.mu.Lock()
	switch s.state {
	case Ready, Dirty, Saving:
	case Closed:
		s.mu.Unlock()
		return ErrClosed
	default:
		s.mu.Unlock()
		return ErrNotEditable
	}

	apply(&s.draft)
	s.settleLocked()
	s.mu.Unlock()

	s.emit()
	return nil
}

// settleLocked moves between Ready and Dirty after the draft or baseline
// changed. While a save is in flight the state stays Saving.
func (s *Session) settleLocked() {
	if s.state == Saving {
		return
	}
	if s.draft == s.baseline {
		s.state = Ready
		s.stopTimerLocked()
		return
	}
	s.state = Dirty
	s.scheduleLocked()
}

// scheduleLocked (re)starts the autosave countdown. At most one timer is
// pending per session.
func (s *Session) scheduleLocked() {
	s.stopTimerLocked()
	if s.deleting {
		return
	}
	s.timer = time.AfterFunc(s.opts.AutosaveDelay, s.autosave)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) autosave() {
	s.mu.Lock()
	deleting := s.deleting
	s.mu.Unlock()
	if deleting {
		return
	}
	if err := s.Save(context.Background()); err != nil {
		s.logger.Warn().Err(err).Msg("Autosave failed")
	}
}

// Save writes the draft if it has unsaved changes. A blank title is replaced
// by one derived from the body. On failure the draft is kept and the session
// returns to Dirty, except after an authentication failure, which ends in
// Error.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Dirty {
		s.mu.Unlock()
		return nil
	}
	s.stopTimerLocked()
	s.state = Saving
	saving := s.draft
	if strings.TrimSpace(saving.title) == "" {
		saving.title = s.deriveTitle(saving.body)
	}
	s.mu.Unlock()
	s.emit()

	err := s.source.Update(ctx, s.id, saving.body, saving.title)

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return err
	}
	if err != nil {
		s.lastErr = err
		if errors.Is(err, errors.ErrAuth) {
			s.state = Error
		} else {
			s.state = Dirty
		}
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("Failed to save note")
		s.emit()
		return err
	}

	s.lastErr = nil
	s.lastSaved = time.Now()
	// A title left blank takes the derived one, unless it was typed meanwhile
	if strings.TrimSpace(s.draft.title) == "" {
		s.draft.title = saving.title
	}
	s.baseline = saving
	s.state = Ready
	s.settleLocked()
	s.mu.Unlock()

	s.logger.Debug().Msg("Note saved")
	s.emit()
	return nil
}

// Close ends the session. With unsaved changes the user must confirm; if
// they decline, Close returns false and the session stays open.
func (s *Session) Close() bool {
	if s.HasUnsavedChanges() && !s.opts.Confirmer.Confirm("You have unsaved changes. Are you sure you want to leave?") {
		return false
	}

	s.mu.Lock()
	s.stopTimerLocked()
	s.state = Closed
	s.mu.Unlock()
	s.emit()
	return true
}

// Delete removes the note after confirmation and navigates to the owning
// collection. It returns false when the user declined.
func (s *Session) Delete(ctx context.Context) (bool, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == Closed {
		return false, ErrClosed
	}
	if state == Loading || state == Error && s.Document().ID == "" {
		return false, ErrNotEditable
	}

	s.mu.Lock()
	s.deleting = true
	s.stopTimerLocked()
	s.mu.Unlock()

	msg := fmt.Sprintf("Are you sure you want to delete this %s? This action cannot be undone.", s.source.Kind())
	if !s.opts.Confirmer.Confirm(msg) {
		s.resumeAfterDelete(nil)
		return false, nil
	}

	if err := s.source.Delete(ctx, s.id); err != nil {
		s.resumeAfterDelete(err)
		s.emit()
		return true, err
	}

	s.mu.Lock()
	s.deleting = false
	s.state = Closed
	s.mu.Unlock()
	s.emit()

	s.opts.Navigator.Navigate(s.source.CollectionPath())
	return true, nil
}

// resumeAfterDelete restarts autosave for a session that is still open after
// a declined or failed delete.
func (s *Session) resumeAfterDelete(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleting = false
	if err != nil {
		s.lastErr = err
	}
	if s.state == Dirty {
		s.scheduleLocked()
	}
}
