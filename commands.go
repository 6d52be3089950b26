package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/zlnvch/notesync/api"
	"github.com/zlnvch/notesync/editor"
	"github.com/zlnvch/notesync/guard"
	"github.com/zlnvch/notesync/hooks"
	"github.com/zlnvch/notesync/models"
	"github.com/zlnvch/notesync/mq/sqsmq"
	"github.com/zlnvch/notesync/worker"
)

var (
	errUsage     = errors.New("usage")
	errSignedOut = errors.New("not signed in, run 'notesync login' first")
)

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "serve":
		return a.serve(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.client.Logout(ctx)
	case "whoami":
		return a.whoami()
	case "account":
		return a.account(ctx, args)
	case "notes":
		return a.notes(ctx, args)
	case "teams":
		return a.teams(ctx, args)
	}
	return errUsage
}

func (a *app) serve(ctx context.Context, args []string) error {
	flagSet := flag.NewFlagSet("serve", flag.ContinueOnError)
	ingest := flagSet.Bool("ingest", false, "Consume the SQS ingest queue")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	a.startRefresher(ctx)

	notes := hooks.NewNotes(a.client, a.hookOpts)
	teams := hooks.NewTeams(a.client, a.hookOpts)
	notes.BindSession(ctx, a.sessions)
	teams.BindSession(ctx, a.sessions)
	a.listen(ctx, "notes", notes)
	a.listen(ctx, "teams", teams)

	if *ingest {
		queue, err := sqsmq.NewSQSMessageQueue(ctx, a.cfg.DevMode, a.cfg.Ingest.SQSEndpoint, a.cfg.Ingest.QueueName)
		if err != nil {
			return fmt.Errorf("create ingest queue: %w", err)
		}
		teamNotes := func(fetchCtx context.Context, teamId string) worker.NoteCreator {
			tn := hooks.NewTeamNotes(a.client, a.sessions, a.hookOpts)
			tn.SetScope(fetchCtx, teamId)
			a.listen(ctx, "team_notes", tn)
			return tn
		}
		go worker.NewIngestConsumer(queue, notes, teamNotes, a.logger).Run(ctx)
	}

	server, err := api.NewServer(api.Config{
		BackendURL:     a.cfg.API.BaseURL,
		StaticDir:      a.cfg.Server.StaticDir,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	}, api.Deps{
		Sessions: a.sessions,
		Guard:    guard.New(a.sessions, a.logger),
		Notes:    notes,
		Teams:    teams,
	}, ctx, a.logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", a.cfg.Server.Addr).Str("backend", a.cfg.API.BaseURL).Msg("Starting UI server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	notes.Close()
	teams.Close()
	return httpServer.Shutdown(shutdownCtx)
}

func credentialFlags(name string, args []string) (email, password string, err error) {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	e := flagSet.String("email", "", "Account email")
	p := flagSet.String("password", os.Getenv("NOTESYNC_PASSWORD"), "Account password (or NOTESYNC_PASSWORD)")
	if err := flagSet.Parse(args); err != nil {
		return "", "", err
	}
	return *e, *p, nil
}

func (a *app) register(ctx context.Context, args []string) error {
	email, password, err := credentialFlags("register", args)
	if err != nil {
		return err
	}
	if err := a.client.Register(ctx, email, password); err != nil {
		return err
	}
	fmt.Println("Registered", email)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	email, password, err := credentialFlags("login", args)
	if err != nil {
		return err
	}
	sess, err := a.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", sess.User.Email, sess.User.Id)
	return nil
}

func (a *app) whoami() error {
	user, ok := a.sessions.User()
	if !ok {
		fmt.Println("Not signed in")
		return nil
	}
	fmt.Printf("%s (%s)\n", user.Email, user.Id)
	return nil
}

func (a *app) account(ctx context.Context, args []string) error {
	email, password, err := credentialFlags("account", args)
	if err != nil {
		return err
	}
	user, err := a.client.UpdateUser(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Updated %s (%s)\n", user.Email, user.Id)
	return nil
}

// stdinConfirmer asks on stderr and reads y/N from stdin. With yes set it
// accepts without asking.
func stdinConfirmer(yes bool) editor.Confirmer {
	return editor.ConfirmFunc(func(message string) bool {
		if yes {
			return true
		}
		fmt.Fprintf(os.Stderr, "%s [y/N] ", message)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	})
}

// bodyArg joins the positional args into a note body; "-" reads stdin.
func bodyArg(args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(b), "\n"), nil
	}
	return strings.Join(args, " "), nil
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

type noteRow struct {
	id      string
	body    string
	updated time.Time
}

func printNotes(rows []noteRow) {
	w := newTable()
	fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.id, models.ListTitle(r.body), r.updated.Local().Format(time.DateTime))
	}
	w.Flush()
}

func listRows[T hooks.Entry](items []T, id func(T) string, query string, sortBy hooks.SortKey, recent int) []noteRow {
	items = hooks.SearchNotes(items, query)
	if recent > 0 {
		items = hooks.RecentNotes(items, recent)
	} else {
		items = hooks.SortNotes(items, sortBy)
	}
	rows := make([]noteRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, noteRow{id: id(it), body: it.Text(), updated: it.Updated()})
	}
	return rows
}

func (a *app) notes(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if !a.sessions.IsAuthenticated() {
		return errSignedOut
	}
	sub, args := args[0], args[1:]

	flagSet := flag.NewFlagSet("notes "+sub, flag.ContinueOnError)
	teamId := flagSet.String("team", "", "Team id for team notes")
	search := flagSet.String("search", "", "Only notes containing this text (list)")
	sortBy := flagSet.String("sort", "updated", "Sort by updated, created or title (list)")
	recent := flagSet.Int("recent", 0, "Only the n most recently updated notes (list)")
	title := flagSet.String("title", "", "Title to save with the note (edit)")
	yes := flagSet.Bool("yes", false, "Do not ask for confirmation (delete)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	args = flagSet.Args()

	var (
		personal *hooks.Notes
		team     *hooks.TeamNotes
		source   editor.NoteSource
	)
	if *teamId != "" {
		team = hooks.NewTeamNotes(a.client, a.sessions, a.hookOpts)
		defer team.Close()
		team.SetScope(ctx, *teamId)
		source = editor.TeamNotes(team)
	} else {
		personal = hooks.NewNotes(a.client, a.hookOpts)
		defer personal.Close()
		personal.BindSession(ctx, a.sessions)
		source = editor.PersonalNotes(personal)
	}

	switch sub {
	case "list":
		key, ok := hooks.ParseSortKey(*sortBy)
		if !ok {
			return fmt.Errorf("unknown sort key %q", *sortBy)
		}
		var rows []noteRow
		if team != nil {
			state := team.State()
			if state.Error != "" {
				return errors.New(state.Error)
			}
			rows = listRows(state.Items, func(n models.TeamNote) string { return n.Id }, *search, key, *recent)
		} else {
			state := personal.State()
			if state.Error != "" {
				return errors.New(state.Error)
			}
			rows = listRows(state.Items, func(n models.Note) string { return n.Id }, *search, key, *recent)
		}
		printNotes(rows)
		return nil

	case "create":
		body, err := bodyArg(args)
		if err != nil {
			return err
		}
		if team != nil {
			return team.Create(ctx, body)
		}
		return personal.Create(ctx, body)

	case "show":
		if len(args) != 1 {
			return errUsage
		}
		doc, err := source.GetOne(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n\n%s\n", models.DeriveTitle(doc.Body), doc.Body)
		return nil

	case "edit":
		if len(args) < 2 {
			return errUsage
		}
		body, err := bodyArg(args[1:])
		if err != nil {
			return err
		}
		return a.edit(ctx, source, args[0], body, *title)

	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		s, err := editor.Open(ctx, source, args[0], editor.Options{
			Confirmer: stdinConfirmer(*yes),
			Logger:    a.logger,
			Navigator: navigatePrinter{},
		})
		if err != nil {
			return err
		}
		ok, err := s.Delete(ctx)
		if err == nil && !ok {
			fmt.Println("Cancelled")
		}
		return err
	}
	return errUsage
}

type navigatePrinter struct{}

func (navigatePrinter) Navigate(path string) {
	fmt.Println("Deleted, back to", path)
}

// edit drives one editor session: open, replace the body, save, close.
func (a *app) edit(ctx context.Context, source editor.NoteSource, noteId, body, title string) error {
	format := editor.FormatPlain
	if a.cfg.Editor.Format == "html" {
		format = editor.FormatHTML
	}
	s, err := editor.Open(ctx, source, noteId, editor.Options{
		AutosaveDelay: a.cfg.Editor.AutosaveDelay,
		Format:        format,
		Logger:        a.logger,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.SetBody(body); err != nil {
		return err
	}
	if title != "" {
		if err := s.SetTitle(title); err != nil {
			return err
		}
	}
	if !s.HasUnsavedChanges() {
		fmt.Println("No changes")
		return nil
	}
	if err := s.Save(ctx); err != nil {
		return err
	}
	fmt.Printf("Saved %q\n", s.Title())
	return nil
}

func (a *app) teams(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if !a.sessions.IsAuthenticated() {
		return errSignedOut
	}
	sub, args := args[0], args[1:]

	flagSet := flag.NewFlagSet("teams "+sub, flag.ContinueOnError)
	filter := flagSet.String("filter", "", "Only teams whose name contains this text (list)")
	private := flagSet.Bool("private", false, "Create a private team (create)")
	role := flagSet.String("role", "", "Member role (add-member)")
	yes := flagSet.Bool("yes", false, "Do not ask for confirmation (delete)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	args = flagSet.Args()

	teams := hooks.NewTeams(a.client, a.hookOpts)
	defer teams.Close()
	teams.BindSession(ctx, a.sessions)

	switch sub {
	case "list":
		state := teams.State()
		if state.Error != "" {
			return errors.New(state.Error)
		}
		w := newTable()
		fmt.Fprintln(w, "ID\tNAME\tPRIVATE")
		for _, t := range hooks.FilterTeams(state.Items, *filter) {
			fmt.Fprintf(w, "%s\t%s\t%t\n", t.Id, t.Name, t.IsPrivate)
		}
		return w.Flush()

	case "create":
		if len(args) == 0 {
			return errUsage
		}
		return teams.Create(ctx, strings.Join(args, " "), *private)

	case "show":
		if len(args) != 1 {
			return errUsage
		}
		team, err := teams.GetTeam(ctx, args[0])
		if err != nil {
			return err
		}
		members, err := teams.Members(ctx, args[0])
		if err != nil {
			return err
		}
		user, _ := a.sessions.User()
		fmt.Printf("%s (%s)\nprivate: %t\nyour role: %s\nmembers: %d\n",
			team.Name, team.Id, team.IsPrivate, hooks.MemberRole(members, user.Id), len(members))
		return nil

	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		if !stdinConfirmer(*yes).Confirm("Are you sure you want to delete this team? This action cannot be undone.") {
			fmt.Println("Cancelled")
			return nil
		}
		return teams.Delete(ctx, args[0])

	case "members":
		if len(args) != 1 {
			return errUsage
		}
		members, err := teams.Members(ctx, args[0])
		if err != nil {
			return err
		}
		w := newTable()
		fmt.Fprintln(w, "USER\tROLE")
		for _, m := range members {
			fmt.Fprintf(w, "%s\t%s\n", m.UserId, m.Role)
		}
		return w.Flush()

	case "add-member":
		if len(args) != 2 {
			return errUsage
		}
		return teams.AddMember(ctx, args[0], args[1], *role)

	case "remove-member":
		if len(args) != 2 {
			return errUsage
		}
		return teams.RemoveMember(ctx, args[0], args[1])
	}
	return errUsage
}
