package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sameera/osem-ladders-sub001/internal/assessment"
	"github.com/sameera/osem-ladders-sub001/internal/autosave"
	"github.com/sameera/osem-ladders-sub001/internal/config"
	"github.com/sameera/osem-ladders-sub001/internal/kvstore"
	"github.com/sameera/osem-ladders-sub001/internal/models"
	"github.com/sameera/osem-ladders-sub001/internal/reportid"
	"github.com/sameera/osem-ladders-sub001/pkg/client"
)

var (
	assessUser       string
	assessAssessment string
	assessType       string
	assessAssessor   string
	assessOffline    bool
)

var errQuit = errors.New("quit")

const sessionHelp = `commands:
  show [N]             show category N (default: current)
  select C L           select level L for competency C of the current category
  unselect C           clear competency C
  evidence C TEXT      set the evidence for the selected level of C
  next C TEXT          set the next-level feedback for the selected level of C
  level N              record the team member's current level
  status               completion and save status
  save                 save now
  retry                repeat a failed save
  submit               save and submit the report
  reset                discard every selection and feedback
  quit                 save and leave
`

var assessCmd = &cobra.Command{
	Use:   "assess FILE",
	Short: "Run an interactive assessment against a ladder",
	Long: `Starts a line-driven assessment session. Selections and feedback are kept
in the local session store between runs and saved to the API periodically,
on navigation, on submit and on quit. With --offline nothing leaves the
local store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := loadLadder(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		opts := sessionOptions{
			UserID:       assessUser,
			AssessmentID: assessAssessment,
			Type:         models.ReportType(assessType),
			AssessorID:   assessAssessor,
			Interval:     cfg.Autosave.Interval,
		}
		if !assessOffline {
			opts.Client = client.NewClient(cfg.Client.BaseURL, cfg.Client.APIKey)
		}

		sess, err := newSession(ctx, l, store, opts, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return sess.run(ctx, cmd.InOrStdin())
	},
}

func init() {
	assessCmd.Flags().StringVar(&assessUser, "user", "", "Team member being assessed (default: last session's)")
	assessCmd.Flags().StringVar(&assessAssessment, "assessment", "", "Assessment id (default: last session's, or a new one)")
	assessCmd.Flags().StringVar(&assessType, "type", string(models.ReportSelf), "Report type: self or manager")
	assessCmd.Flags().StringVar(&assessAssessor, "assessor", "", "Assessor id (default: --user)")
	assessCmd.Flags().BoolVar(&assessOffline, "offline", false, "Keep responses in the local session store only")
	rootCmd.AddCommand(assessCmd)
}

// openStore opens the session store selected by the configuration
func openStore(ctx context.Context, cfg *config.Config) (kvstore.Store, error) {
	switch cfg.KV.Backend {
	case config.KVBackendRedis:
		return kvstore.DialRedis(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, "ladderctl")
	default:
		return kvstore.OpenSQLite(cfg.KV.SQLitePath)
	}
}

type sessionOptions struct {
	UserID       string
	AssessmentID string
	Type         models.ReportType
	AssessorID   string
	Interval     time.Duration
	// Client is nil for offline sessions
	Client *client.Client
}

// session is one interactive assessment of a ladder
type session struct {
	ladder   *models.Ladder
	state    *assessment.State
	store    kvstore.Store
	saver    *autosave.Orchestrator
	client   *client.Client
	ident    reportid.Identity
	assessor string
	out      io.Writer

	ctx       context.Context
	step      int
	level     int
	submitted bool
}

// newSession restores the stored session state and wires it to the autosave orchestrator
func newSession(ctx context.Context, l *models.Ladder, store kvstore.Store, opts sessionOptions, out io.Writer) (*session, error) {
	if !opts.Type.Valid() {
		return nil, fmt.Errorf("type must be %q or %q, got %q", models.ReportSelf, models.ReportManager, opts.Type)
	}

	userID := opts.UserID
	if userID == "" {
		userID = kvstore.GetJSON(ctx, store, kvstore.KeyTeamMemberName, "")
	}
	if userID == "" {
		return nil, errors.New("--user is required for a new session")
	}

	assessmentID := opts.AssessmentID
	if assessmentID == "" {
		assessmentID = kvstore.GetJSON(ctx, store, kvstore.KeyAssessmentID, "")
	}
	if assessmentID == "" {
		assessmentID = uuid.NewString()
	}

	for _, v := range []string{userID, assessmentID} {
		if strings.Contains(v, reportid.Separator) {
			return nil, fmt.Errorf("%q must not contain %q", v, reportid.Separator)
		}
	}

	assessor := opts.AssessorID
	if assessor == "" {
		assessor = userID
	}

	s := &session{
		ladder:   l,
		state:    assessment.NewState(),
		store:    store,
		client:   opts.Client,
		ident:    reportid.Identity{UserID: userID, AssessmentID: assessmentID, Type: opts.Type},
		assessor: assessor,
		out:      out,
		ctx:      ctx,
		step:     kvstore.GetJSON(ctx, store, kvstore.KeyCurrentStep, 0),
		level:    kvstore.GetJSON(ctx, store, kvstore.KeyCurrentLevel, 0),
	}
	if s.step < 0 || s.step >= len(l.Categories) {
		s.step = 0
	}

	selections := kvstore.GetJSON(ctx, store, kvstore.KeySelections, models.Selections{})
	feedback := kvstore.GetJSON(ctx, store, kvstore.KeyFeedback, models.Feedback{})
	s.state.Load(selections, feedback)
	if len(selections) == 0 && s.client != nil {
		s.resumeRemote(ctx)
	}

	if err := kvstore.SetJSON(ctx, store, kvstore.KeyTeamMemberName, userID); err != nil {
		return nil, err
	}
	if err := kvstore.SetJSON(ctx, store, kvstore.KeyAssessmentID, assessmentID); err != nil {
		return nil, err
	}

	s.saver = autosave.New(s.state, s.save, autosave.WithInterval(opts.Interval))
	s.state.OnChange(s.persist)
	s.state.OnChange(s.saver.MarkDirty)
	s.saver.Subscribe(func(st autosave.Status) {
		slog.Debug("autosave status", "report_id", s.ident.String(), "status", st.String())
	})

	return s, nil
}

// resumeRemote loads responses already saved on the API
func (s *session) resumeRemote(ctx context.Context) {
	report, err := s.client.GetReport(ctx, s.ident.String())
	if err != nil {
		if !client.IsNotFound(err) {
			slog.Warn("failed to fetch saved report", "id", s.ident.String(), "error", err)
		}
		return
	}
	s.state.LoadResponses(report.Responses)
	slog.Info("resumed saved report", "id", report.ID, "responses", len(report.Responses))
}

// save is the orchestrator's save function
func (s *session) save(ctx context.Context, responses models.Responses) error {
	if s.client == nil {
		s.persist()
		return nil
	}
	_, err := s.client.SaveResponses(ctx, s.ident, s.assessor, responses)
	return err
}

// persist writes the working state to the session store
func (s *session) persist() {
	selections, feedback := s.state.Snapshot()
	if err := kvstore.SetJSON(s.ctx, s.store, kvstore.KeySelections, selections); err != nil {
		slog.Error("failed to store selections", "error", err)
	}
	if err := kvstore.SetJSON(s.ctx, s.store, kvstore.KeyFeedback, feedback); err != nil {
		slog.Error("failed to store feedback", "error", err)
	}
}

// run reads commands from in until quit or EOF
func (s *session) run(ctx context.Context, in io.Reader) error {
	s.saver.Start(ctx)
	defer s.saver.Stop()

	fmt.Fprintf(s.out, "assessing %s for %s (report %s)\n", s.ladder.ID, s.ident.UserID, s.ident.String())
	s.show(s.step)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := s.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	s.finalSave(ctx)
	return nil
}

func (s *session) exec(ctx context.Context, line string) error {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	if s.submitted {
		switch name {
		case "help", "?", "show", "status", "quit", "exit":
		default:
			return errors.New("report is submitted and can no longer change")
		}
	}

	switch name {
	case "help", "?":
		fmt.Fprint(s.out, sessionHelp)
	case "show":
		step := s.step
		if rest != "" {
			n, err := s.categoryIndex(rest)
			if err != nil {
				return err
			}
			step = n
		}
		if step != s.step {
			if !s.submitted {
				s.saver.Save(ctx, "navigate")
			}
			s.step = step
			if err := kvstore.SetJSON(ctx, s.store, kvstore.KeyCurrentStep, step); err != nil {
				return err
			}
		}
		s.show(s.step)
	case "select":
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return errors.New("usage: select C L")
		}
		category, area, err := s.competency(fields[0])
		if err != nil {
			return err
		}
		level, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid level %q", fields[1])
		}
		if _, ok := area.Level(level); !ok {
			return fmt.Errorf("%s has no level %d", area.Name, level)
		}
		s.state.Select(category.Title, area.Name, level)
		fmt.Fprintf(s.out, "%s: level %d\n", area.Name, level)
	case "unselect":
		category, area, err := s.competency(rest)
		if err != nil {
			return err
		}
		s.state.Unselect(category.Title, area.Name)
		fmt.Fprintf(s.out, "%s: cleared\n", area.Name)
	case "evidence", "next":
		idx, text, _ := strings.Cut(rest, " ")
		category, area, err := s.competency(idx)
		if err != nil {
			return err
		}
		level, ok := s.state.Selection(category.Title, area.Name)
		if !ok {
			return fmt.Errorf("select a level for %s first", area.Name)
		}
		fb, _ := s.state.FeedbackFor(category.Title, area.Name)
		if name == "evidence" {
			fb.Evidence = strings.TrimSpace(text)
		} else {
			fb.NextLevelFeedback = strings.TrimSpace(text)
		}
		if err := s.state.SetFeedback(category.Title, area.Name, level, fb); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s: %s recorded\n", area.Name, name)
	case "level":
		level, err := strconv.Atoi(rest)
		if err != nil || level < 1 {
			return fmt.Errorf("invalid level %q", rest)
		}
		s.level = level
		if err := kvstore.SetJSON(ctx, s.store, kvstore.KeyCurrentLevel, level); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "current level: %d\n", level)
	case "status":
		s.status()
	case "save":
		fmt.Fprintf(s.out, "save: %s\n", s.saver.Save(ctx, "manual"))
	case "retry":
		st := s.saver.Status()
		if !st.CanRetry() {
			return fmt.Errorf("nothing to retry, save is %s", st.Kind)
		}
		fmt.Fprintf(s.out, "save: %s\n", s.saver.Retry(ctx))
	case "submit":
		return s.submit(ctx)
	case "reset":
		s.saver.Reset()
		s.state.Reset()
		s.step = 0
		s.level = 0
		for _, key := range []string{kvstore.KeySelections, kvstore.KeyFeedback, kvstore.KeyCurrentStep, kvstore.KeyCurrentLevel} {
			if err := s.store.Delete(ctx, key); err != nil {
				return err
			}
		}
		s.saver.Start(ctx)
		fmt.Fprintln(s.out, "assessment reset")
	case "quit", "exit":
		s.finalSave(ctx)
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", name)
	}
	return nil
}

func (s *session) categoryIndex(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 || n >= len(s.ladder.Categories) {
		return 0, fmt.Errorf("no category %q", arg)
	}
	return n, nil
}

// competency resolves an index into the current category
func (s *session) competency(arg string) (*models.Category, *models.CoreArea, error) {
	if len(s.ladder.Categories) == 0 {
		return nil, nil, errors.New("ladder has no categories")
	}
	category := &s.ladder.Categories[s.step]
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 || n >= len(category.CoreAreas) {
		return nil, nil, fmt.Errorf("no competency %q in %s", arg, category.Title)
	}
	return category, &category.CoreAreas[n], nil
}

func (s *session) show(step int) {
	if len(s.ladder.Categories) == 0 {
		fmt.Fprintln(s.out, "ladder has no categories")
		return
	}
	category := s.ladder.Categories[step]
	fmt.Fprintf(s.out, "[%d/%d] %s\n", step+1, len(s.ladder.Categories), category.Title)
	for i, area := range category.CoreAreas {
		selected, ok := s.state.Selection(category.Title, area.Name)
		fmt.Fprintf(s.out, "  [%d] %s\n", i, area.Name)
		for _, lvl := range area.Levels {
			mark := " "
			if ok && selected == lvl.Level {
				mark = "*"
			}
			fmt.Fprintf(s.out, "    %s %d. %s\n", mark, lvl.Level, lvl.Content)
		}
	}
}

func (s *session) status() {
	selections, _ := s.state.Snapshot()
	done := assessment.CompletedCategories(s.ladder.Categories, selections)
	for i, c := range s.ladder.Categories {
		mark := " "
		if done.Has(i) {
			mark = "x"
		}
		fmt.Fprintf(s.out, "[%s] %d %s\n", mark, i, c.Title)
	}
	fmt.Fprintf(s.out, "%d of %d categories complete\n", len(done), len(s.ladder.Categories))
	if s.level > 0 {
		fmt.Fprintf(s.out, "current level: %d\n", s.level)
	}
	fmt.Fprintf(s.out, "save: %s\n", s.saver.Status())
}

func (s *session) submit(ctx context.Context) error {
	if s.client == nil {
		return errors.New("submit needs the API, rerun without --offline")
	}
	selections, _ := s.state.Snapshot()
	if !assessment.IsComplete(s.ladder.Categories, selections) {
		return errors.New("every competency needs a selection before submitting")
	}

	// no scheduled save may reach the API after the submit
	s.saver.Stop()
	if st := s.saver.Flush(ctx, "submit"); st.Kind == autosave.KindError {
		s.saver.Start(ctx)
		return fmt.Errorf("save before submit failed: %w", st.Err)
	}
	report, err := s.client.SubmitReport(ctx, s.ident.String(), s.ladder.ID)
	if err != nil {
		s.saver.Start(ctx)
		return err
	}
	s.submitted = true
	fmt.Fprintf(s.out, "report %s submitted\n", report.ID)
	return nil
}

func (s *session) finalSave(ctx context.Context) {
	if s.submitted {
		return
	}
	if st := s.saver.Save(ctx, "quit"); st.Kind == autosave.KindError {
		fmt.Fprintf(s.out, "save: %s\n", st)
	}
}
