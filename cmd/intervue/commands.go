package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/intervue/internal/config"
	"github.com/kalambet/intervue/internal/evaluator"
	"github.com/kalambet/intervue/internal/interview"
	"github.com/kalambet/intervue/internal/questionbank"
	"github.com/kalambet/intervue/internal/storage"
)

// asUser is the --as flag: the user ID every API call acts as.
var asUser string

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the question bank into the database",
	Long: `Load the question bank into the database. Questions already stored
(same category and prompt) are skipped, so seeding twice is harmless.

Examples:
  intervue seed
  intervue seed --file ./questions.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if file != "" {
			cfg.Questions.BankPath = file
		}
		bank, err := loadBank(cfg)
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		res, err := questionbank.Seed(cmd.Context(), store, bank)
		if err != nil {
			return err
		}
		printSuccess("Seeded %d questions (%d already present)", res.Created, res.Skipped)
		if res.Created > 0 {
			printStep("Embeddings are computed by the running server")
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().String("file", "", "YAML question bank (default: built-in bank)")
}

// --- questions ---

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Browse and manage the question bank",
}

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		difficulty, _ := cmd.Flags().GetString("difficulty")
		qtype, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/v1/questions"+query(
			"category", category,
			"difficulty", difficulty,
			"type", qtype,
			"limit", strconv.Itoa(limit),
		))
		if err != nil {
			return err
		}
		var questions []storage.Question
		if err := decodeJSON(resp, &questions); err != nil {
			return err
		}

		if len(questions) == 0 {
			printWarning("No questions found")
			return nil
		}
		rows := make([][]string, 0, len(questions))
		for _, q := range questions {
			rows = append(rows, []string{q.ID, q.Category, q.Difficulty, q.Type, shorten(q.Prompt, 60)})
		}
		printTable([]string{"id", "category", "difficulty", "type", "prompt"}, rows)
		return nil
	},
}

var questionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a question with its response statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		id := url.PathEscape(args[0])

		resp, err := client.get(cmd.Context(), "/api/v1/questions/"+id)
		if err != nil {
			return err
		}
		var q storage.Question
		if err := decodeJSON(resp, &q); err != nil {
			return err
		}

		resp, err = client.get(cmd.Context(), "/api/v1/questions/"+id+"/stats")
		if err != nil {
			return err
		}
		var stats storage.QuestionStats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		return printJSON(map[string]any{"question": q, "stats": stats})
	},
}

var questionsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a question",
	Long: `Add a question to the bank. Options and the expected answer are JSON.

Examples:
  intervue questions add --category Excel --difficulty easy --type objective \
    --prompt "Which function adds a range?" --options '["SUM","COUNT"]' --answer '"SUM"'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := storage.Question{}
		q.Category, _ = cmd.Flags().GetString("category")
		q.Difficulty, _ = cmd.Flags().GetString("difficulty")
		q.Type, _ = cmd.Flags().GetString("type")
		q.Prompt, _ = cmd.Flags().GetString("prompt")
		q.Explanation, _ = cmd.Flags().GetString("explanation")
		q.TimeLimit, _ = cmd.Flags().GetInt("time-limit")
		q.MaxScore, _ = cmd.Flags().GetInt("max-score")
		options, _ := cmd.Flags().GetString("options")
		answer, _ := cmd.Flags().GetString("answer")

		if q.Prompt == "" {
			return fmt.Errorf("--prompt is required")
		}
		var err error
		if q.Options, err = jsonFlag("options", options); err != nil {
			return err
		}
		if q.CorrectAnswer, err = jsonFlag("answer", answer); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/v1/questions", q)
		if err != nil {
			return err
		}
		var created storage.Question
		if err := decodeJSON(resp, &created); err != nil {
			return err
		}
		printSuccess("Question created: %s", created.ID)
		return nil
	},
}

var questionsSimilarCmd = &cobra.Command{
	Use:   "similar <text>",
	Short: "Find questions similar to a piece of text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("n")
		category, _ := cmd.Flags().GetString("category")
		difficulty, _ := cmd.Flags().GetString("difficulty")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/v1/questions/similar", interview.SimilarQuery{
			Text:       strings.Join(args, " "),
			N:          n,
			Category:   category,
			Difficulty: difficulty,
		})
		if err != nil {
			return err
		}
		var matches []interview.SimilarQuestion
		if err := decodeJSON(resp, &matches); err != nil {
			return err
		}

		if len(matches) == 0 {
			printWarning("No similar questions")
			return nil
		}
		rows := make([][]string, 0, len(matches))
		for _, m := range matches {
			rows = append(rows, []string{m.ID, strconv.FormatFloat(m.Distance, 'f', 3, 64), m.Category, shorten(m.Prompt, 60)})
		}
		printTable([]string{"id", "distance", "category", "prompt"}, rows)
		return nil
	},
}

var questionsPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate an interview plan for a level",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("level")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/v1/questions/plan"+query("level", level))
		if err != nil {
			return err
		}
		var plan struct {
			Level string               `json:"level"`
			Items []evaluator.PlanItem `json:"items"`
		}
		if err := decodeJSON(resp, &plan); err != nil {
			return err
		}

		printStatus("Level", "%s", plan.Level)
		rows := make([][]string, 0, len(plan.Items))
		for _, it := range plan.Items {
			rows = append(rows, []string{it.ID, it.Type, strconv.Itoa(it.TimeLimit) + "s", it.Text})
		}
		printTable([]string{"id", "type", "time", "question"}, rows)
		return nil
	},
}

func init() {
	questionsListCmd.Flags().String("category", "", "filter by category")
	questionsListCmd.Flags().String("difficulty", "", "filter by difficulty (easy, medium, hard)")
	questionsListCmd.Flags().String("type", "", "filter by type (objective, multi_turn, assignment)")
	questionsListCmd.Flags().Int("limit", 50, "maximum number of questions")

	questionsAddCmd.Flags().String("category", "Excel", "question category")
	questionsAddCmd.Flags().String("difficulty", storage.DifficultyMedium, "easy, medium or hard")
	questionsAddCmd.Flags().String("type", storage.TypeObjective, "objective, multi_turn or assignment")
	questionsAddCmd.Flags().String("prompt", "", "question text")
	questionsAddCmd.Flags().String("options", "", "answer options as JSON")
	questionsAddCmd.Flags().String("answer", "", "expected answer as JSON")
	questionsAddCmd.Flags().String("explanation", "", "explanation shown after evaluation")
	questionsAddCmd.Flags().Int("time-limit", 0, "time limit in seconds")
	questionsAddCmd.Flags().Int("max-score", 0, "maximum score (default 100)")

	questionsSimilarCmd.Flags().Int("n", 5, "number of results")
	questionsSimilarCmd.Flags().String("category", "", "restrict to a category")
	questionsSimilarCmd.Flags().String("difficulty", "", "restrict to a difficulty")

	questionsPlanCmd.Flags().String("level", evaluator.LevelIntermediate, "beginner, intermediate or advanced")

	questionsCmd.AddCommand(questionsListCmd)
	questionsCmd.AddCommand(questionsShowCmd)
	questionsCmd.AddCommand(questionsAddCmd)
	questionsCmd.AddCommand(questionsSimilarCmd)
	questionsCmd.AddCommand(questionsPlanCmd)
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Run interview sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List interview sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/v1/interview"+query("status", status, "limit", strconv.Itoa(limit)))
		if err != nil {
			return err
		}
		var sessions []interview.SessionSummary
		if err := decodeJSON(resp, &sessions); err != nil {
			return err
		}

		if len(sessions) == 0 {
			printWarning("No sessions found")
			return nil
		}
		rows := make([][]string, 0, len(sessions))
		for _, s := range sessions {
			score := "-"
			if s.AverageScore != nil {
				score = strconv.FormatFloat(*s.AverageScore, 'f', 1, 64)
			}
			rows = append(rows, []string{
				s.SessionID,
				s.Status,
				fmt.Sprintf("%d/%d", s.QuestionsAnswered, s.TotalQuestions),
				score,
				s.Title,
			})
		}
		printTable([]string{"id", "status", "answered", "score", "title"}, rows)
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session with its questions and responses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), sessionPath(args[0], ""))
		if err != nil {
			return err
		}
		var details interview.SessionDetails
		if err := decodeJSON(resp, &details); err != nil {
			return err
		}
		return printJSON(details)
	},
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft interview session",
	Long: `Create a draft interview session.

Examples:
  intervue sessions create --title "Excel screening" --candidate <user-id> --questions q1,q2,q3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := interview.CreateSessionInput{}
		in.Title, _ = cmd.Flags().GetString("title")
		in.Description, _ = cmd.Flags().GetString("description")
		in.CandidateID, _ = cmd.Flags().GetString("candidate")
		in.InterviewerID, _ = cmd.Flags().GetString("interviewer")
		in.TimeLimit, _ = cmd.Flags().GetInt("time-limit")
		questions, _ := cmd.Flags().GetString("questions")
		in.QuestionIDs = splitList(questions)

		if in.Title == "" || in.CandidateID == "" || len(in.QuestionIDs) == 0 {
			return fmt.Errorf("--title, --candidate and --questions are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/v1/interview", in)
		if err != nil {
			return err
		}
		var sess storage.Session
		if err := decodeJSON(resp, &sess); err != nil {
			return err
		}
		printSuccess("Session created: %s (%d questions)", sess.ID, len(sess.QuestionIDs))
		return nil
	},
}

// transitionCmd builds a command that POSTs to a session action endpoint.
func transitionCmd(action, short, done string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			resp, err := client.post(cmd.Context(), sessionPath(args[0], "/"+action), nil)
			if err != nil {
				return err
			}
			var sess storage.Session
			if err := decodeJSON(resp, &sess); err != nil {
				return err
			}
			printSuccess("Session %s %s", sess.ID, done)
			return nil
		},
	}
}

var (
	sessionsStartCmd  = transitionCmd("start", "Start a draft session", "started")
	sessionsCancelCmd = transitionCmd("cancel", "Cancel a session", "cancelled")
)

var sessionsAnswerCmd = &cobra.Command{
	Use:   "answer <id>",
	Short: "Submit an answer",
	Long: `Submit an answer to a question of an in-progress session.

Examples:
  intervue sessions answer <id> --question <qid> --text "=VLOOKUP(A2,B:C,2,FALSE)"
  intervue sessions answer <id> --question <qid> --json '{"choice":"B"}'
  intervue sessions answer <id> --question <qid> --file ./dashboard.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		questionID, _ := cmd.Flags().GetString("question")
		text, _ := cmd.Flags().GetString("text")
		raw, _ := cmd.Flags().GetString("json")
		file, _ := cmd.Flags().GetString("file")
		timeTaken, _ := cmd.Flags().GetInt("time-taken")

		if questionID == "" {
			return fmt.Errorf("--question is required")
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if file != "" {
			return uploadAnswer(cmd.Context(), client, args[0], questionID, file, timeTaken)
		}

		in := interview.AnswerInput{QuestionID: questionID}
		switch {
		case raw != "":
			if in.Answer, err = jsonFlag("json", raw); err != nil {
				return err
			}
		case text != "":
			in.Answer, _ = json.Marshal(map[string]string{"text": text})
		default:
			return fmt.Errorf("one of --text, --json or --file is required")
		}
		if timeTaken >= 0 {
			in.TimeTaken = &timeTaken
		}

		resp, err := client.post(cmd.Context(), sessionPath(args[0], "/submit-answer"), in)
		if err != nil {
			return err
		}
		var r storage.Response
		if err := decodeJSON(resp, &r); err != nil {
			return err
		}
		printSuccess("Answer recorded (%ds)", r.TimeTaken)
		return nil
	},
}

func uploadAnswer(ctx context.Context, client *apiClient, sessionID, questionID, file string, timeTaken int) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	fields := map[string]string{"question_id": questionID}
	if timeTaken >= 0 {
		fields["time_taken"] = strconv.Itoa(timeTaken)
	}
	resp, err := client.upload(ctx, sessionPath(sessionID, "/upload"), fields, filepath.Base(file), f)
	if err != nil {
		return err
	}
	var out struct {
		Upload storage.Upload `json:"upload"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return err
	}
	printSuccess("Uploaded %s (%d bytes)", out.Upload.FileName, out.Upload.Size)
	return nil
}

var sessionsEvaluateCmd = &cobra.Command{
	Use:   "evaluate <id>",
	Short: "Evaluate a submitted answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		questionID, _ := cmd.Flags().GetString("question")
		if questionID == "" {
			return fmt.Errorf("--question is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), sessionPath(args[0], "/evaluate"), map[string]string{"question_id": questionID})
		if err != nil {
			return err
		}
		var res evaluator.Result
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		verdict := colorize(colorRed, "incorrect")
		if res.IsCorrect {
			verdict = colorize(colorGreen, "correct")
		}
		printStatus("Score", "%s (%s)", strconv.FormatFloat(res.Score, 'f', -1, 64), verdict)
		printStatus("Feedback", "%s", res.Feedback)
		if res.IsMock() {
			printWarning("Mock evaluation: configure an LLM provider for real feedback")
		}
		return nil
	},
}

var sessionsFollowUpCmd = &cobra.Command{
	Use:   "follow-up <id>",
	Short: "Ask for a follow-up question on an answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		questionID, _ := cmd.Flags().GetString("question")
		if questionID == "" {
			return fmt.Errorf("--question is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), sessionPath(args[0], "/follow-up"), map[string]string{"question_id": questionID})
		if err != nil {
			return err
		}
		var fq evaluator.FollowUpQuestion
		if err := decodeJSON(resp, &fq); err != nil {
			return err
		}
		fmt.Fprintln(stdout, fq.Text)
		return nil
	},
}

var sessionsQuickScoreCmd = &cobra.Command{
	Use:   "quick-score <id>",
	Short: "Grade an answer by length without calling a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		questionID, _ := cmd.Flags().GetString("question")
		if questionID == "" {
			return fmt.Errorf("--question is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), sessionPath(args[0], "/quick-score"), map[string]string{"question_id": questionID})
		if err != nil {
			return err
		}
		var res evaluator.HeuristicResult
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Score: %d/10 (%d words)\n%s\n", res.Score, res.ResponseLength, res.Feedback)
		return nil
	},
}

var sessionsTimerCmd = &cobra.Command{
	Use:   "timer <id>",
	Short: "Show or control the question countdowns",
	Long: `Show the question countdowns of a session, or pause, resume or
switch the active question.

Examples:
  intervue sessions timer <id>
  intervue sessions timer <id> --pause
  intervue sessions timer <id> --switch <qid>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pause, _ := cmd.Flags().GetBool("pause")
		resume, _ := cmd.Flags().GetBool("resume")
		switchTo, _ := cmd.Flags().GetString("switch")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id := args[0]

		var resp *http.Response
		switch {
		case pause:
			resp, err = client.post(ctx, sessionPath(id, "/timer/pause"), nil)
		case resume:
			resp, err = client.post(ctx, sessionPath(id, "/timer/resume"), nil)
		case switchTo != "":
			resp, err = client.post(ctx, sessionPath(id, "/timer/switch"), map[string]string{"question_id": switchTo})
		default:
			resp, err = client.get(ctx, sessionPath(id, "/timer"))
		}
		if err != nil {
			return err
		}
		var view interview.TimerView
		if err := decodeJSON(resp, &view); err != nil {
			return err
		}

		rows := make([][]string, 0, len(view.Questions))
		for _, q := range view.Questions {
			marker := ""
			if q.QuestionID == view.CurrentQuestionID {
				marker = "*"
			}
			rows = append(rows, []string{marker, q.QuestionID, string(q.State), fmt.Sprintf("%.0f/%ds", q.RemainingSeconds, q.LimitSeconds)})
		}
		printTable([]string{"", "question", "state", "remaining"}, rows)
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().String("status", "", "filter by status (draft, in_progress, completed, cancelled)")
	sessionsListCmd.Flags().Int("limit", 20, "maximum number of sessions")

	sessionsCreateCmd.Flags().String("title", "", "session title")
	sessionsCreateCmd.Flags().String("description", "", "session description")
	sessionsCreateCmd.Flags().String("candidate", "", "candidate user ID")
	sessionsCreateCmd.Flags().String("interviewer", "", "interviewer user ID")
	sessionsCreateCmd.Flags().String("questions", "", "comma-separated question IDs, in order")
	sessionsCreateCmd.Flags().Int("time-limit", 0, "overall time limit in minutes")

	sessionsAnswerCmd.Flags().String("question", "", "question ID")
	sessionsAnswerCmd.Flags().String("text", "", "free-text answer")
	sessionsAnswerCmd.Flags().String("json", "", "answer as a JSON object")
	sessionsAnswerCmd.Flags().String("file", "", "file to upload (assignment questions)")
	sessionsAnswerCmd.Flags().Int("time-taken", -1, "seconds spent (default: measured by the server)")

	sessionsEvaluateCmd.Flags().String("question", "", "question ID")
	sessionsFollowUpCmd.Flags().String("question", "", "question ID")
	sessionsQuickScoreCmd.Flags().String("question", "", "question ID")

	sessionsTimerCmd.Flags().Bool("pause", false, "pause the running countdown")
	sessionsTimerCmd.Flags().Bool("resume", false, "resume the paused countdown")
	sessionsTimerCmd.Flags().String("switch", "", "make this question the active one")
	sessionsTimerCmd.MarkFlagsMutuallyExclusive("pause", "resume", "switch")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsCreateCmd)
	sessionsCmd.AddCommand(sessionsStartCmd)
	sessionsCmd.AddCommand(sessionsCancelCmd)
	sessionsCmd.AddCommand(sessionsAnswerCmd)
	sessionsCmd.AddCommand(sessionsEvaluateCmd)
	sessionsCmd.AddCommand(sessionsFollowUpCmd)
	sessionsCmd.AddCommand(sessionsQuickScoreCmd)
	sessionsCmd.AddCommand(sessionsTimerCmd)
}

// --- users ---

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		superuser, _ := cmd.Flags().GetBool("superuser")
		if email == "" {
			return fmt.Errorf("--email is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/v1/users", storage.User{Email: email, Name: name, IsSuperuser: superuser})
		if err != nil {
			return err
		}
		var u storage.User
		if err := decodeJSON(resp, &u); err != nil {
			return err
		}
		printSuccess("User created: %s", u.ID)
		return nil
	},
}

func init() {
	usersCreateCmd.Flags().String("email", "", "email address")
	usersCreateCmd.Flags().String("name", "", "display name")
	usersCreateCmd.Flags().Bool("superuser", false, "grant superuser rights")
	usersCmd.AddCommand(usersCreateCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		fmt.Fprintf(stdout, "# %s\n", config.FilePath())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(stdout, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so the default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configUnsetCmd)
}

func sessionPath(id, suffix string) string {
	return "/api/v1/interview/" + url.PathEscape(id) + suffix
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// jsonFlag validates a JSON-valued flag; empty means unset.
func jsonFlag(name, value string) (json.RawMessage, error) {
	if value == "" {
		return nil, nil
	}
	if !json.Valid([]byte(value)) {
		return nil, fmt.Errorf("--%s must be valid JSON", name)
	}
	return json.RawMessage(value), nil
}

func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
