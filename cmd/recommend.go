package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/headhunter"
	"github.com/spigell/hh-pathfinder/internal/profile"
	"github.com/spigell/hh-pathfinder/internal/recommend"
)

const (
	PromptRecommendations     = "Show recommended vacancies"
	PromptCareerPaths         = "Show career paths"
	PromptSkills              = "Show skills to learn"
	PromptResultToFile        = "Dump result to file"
	PromptAppendToExcludeFile = "Append recommended vacancies to exclude file"
	PromptExit                = "Exit"
	PromptBack                = "back"
)

var errExit = errors.New("exit requested")

var recommendCmd = &cobra.Command{
	Use:   "recommend [query...]",
	Short: "Recommend vacancies, adjacent career paths and skills for a candidate",
	Long: `Recommend vacancies for a candidate described by a free-text query, a chat
history file (--history) or, when neither is given, an interactive questionnaire.`,
	Run: func(cmd *cobra.Command, args []string) {
		runRecommend(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().String("history", "", "chat history JSON file ([{\"role\": \"user\", \"content\": \"...\"}]) to build the profile from")
	recommendCmd.Flags().StringToString("filter", nil, "keep only vacancies with the attribute value, e.g. --filter experience=\"от 3 до 6 лет\"")
	recommendCmd.Flags().IntP("top-k", "k", 0, "number of vacancies to recommend")
	recommendCmd.Flags().Int("top-career", 0, "adjacent positions to follow per skill")
	recommendCmd.Flags().Int("min-skill-freq", 0, "minimum occurrences for a skill to be suggested")
	recommendCmd.Flags().Int("top-skills", 0, "maximum number of suggested skills")
	recommendCmd.Flags().BoolP("yes", "y", false, "print the result as JSON and exit without the menu")

	viper.BindPFlag("recommend.top-k", recommendCmd.Flags().Lookup("top-k"))
	viper.BindPFlag("recommend.top-career", recommendCmd.Flags().Lookup("top-career"))
	viper.BindPFlag("recommend.min-skill-freq", recommendCmd.Flags().Lookup("min-skill-freq"))
	viper.BindPFlag("recommend.top-skills", recommendCmd.Flags().Lookup("top-skills"))
}

func runRecommend(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, log := setup()

	d, err := newDeps(ctx, config, log)
	if err != nil {
		log.Fatal("preparing the engine", zap.Error(err))
	}
	defer d.Close()

	engine, err := d.build(ctx)
	if err != nil {
		log.Fatal("building the engine", zap.Error(err))
	}

	text, built, err := candidateQuery(ctx, cmd, args, d)
	if err != nil {
		log.Fatal("describing the candidate", zap.Error(err))
	}
	if built != nil {
		pretty, _ := json.MarshalIndent(built, "", "  ")
		log.Debug(fmt.Sprintf("candidate profile: \n %s", pretty))
	}

	opts := config.Recommend
	if filters, _ := cmd.Flags().GetStringToString("filter"); len(filters) > 0 {
		opts.Filters = filters
	}

	res, err := engine.Recommend(ctx, text, opts)
	if err != nil {
		log.Fatal("recommending", zap.Error(err))
	}

	log.Info("recommendation ready",
		zap.String("served_by", res.Strategy),
		zap.Int("vacancies", len(res.Recommendations)),
		zap.Int("career_paths", len(res.CareerPaths)),
		zap.Int("skills", len(res.ExpandedSkills)),
	)

	out := cmd.OutOrStdout()
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		if err := printJSON(out, res); err != nil {
			log.Fatal("printing the result", zap.Error(err))
		}
		return
	}

	menu := []string{PromptRecommendations, PromptCareerPaths, PromptSkills, PromptResultToFile}
	if config.Headhunter.ExcludeFile != "" {
		menu = append(menu, PromptAppendToExcludeFile)
	}
	menu = append(menu, PromptExit)

	for {
		prompt := promptui.Select{Label: "What next?", Items: menu}
		_, action, err := prompt.Run()
		if err != nil {
			log.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, out, log, config, engine, res); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			log.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, out io.Writer, log *zap.Logger, config *Config, engine *recommend.Engine, res *recommend.Result) error {
	switch action {
	case PromptRecommendations:
		return browseRecommendations(out, res.Recommendations)
	case PromptCareerPaths:
		for _, p := range res.CareerPaths {
			fmt.Fprintf(out, "%d %s / %s (%.3f)\n    %s\n", p.VacancyID, p.Title, p.Company, p.Similarity, strings.Join(p.Skills, ", "))
		}
		return nil
	case PromptSkills:
		if len(res.ExpandedSkills) == 0 {
			fmt.Fprintln(out, "no skills reached the minimum frequency")
			return nil
		}
		fmt.Fprintln(out, strings.Join(res.ExpandedSkills, ", "))
		return nil
	case PromptResultToFile:
		f, err := os.CreateTemp("", app+"-*.json")
		if err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		defer f.Close()
		if err := printJSON(f, res); err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		log.Info("dumping result to file", zap.String("filename", f.Name()))
		return nil
	case PromptAppendToExcludeFile:
		return appendToExcludeFile(config.Headhunter.ExcludeFile, engine, res, log)
	case PromptExit:
		log.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func browseRecommendations(out io.Writer, recs []recommend.Recommendation) error {
	for {
		items := make([]string, 0, len(recs)+1)
		for _, r := range recs {
			items = append(items, fmt.Sprintf("%d %s / %s / %s", r.VacancyID, r.Title, r.Company, r.Salary))
		}

		prompt := promptui.Select{
			Label: "Choose a vacancy and press ENTER",
			Items: append(items, PromptBack),
			Size:  10,
		}
		i, selected, err := prompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		if err := printJSON(out, recs[i]); err != nil {
			return err
		}
	}
}

func appendToExcludeFile(path string, engine *recommend.Engine, res *recommend.Result, log *zap.Logger) error {
	excluded, err := headhunter.GetExcludedVacanciesFromFile(path)
	if err != nil {
		return err
	}

	corpus := engine.Corpus()
	for _, r := range res.Recommendations {
		if i, ok := corpus.IndexOf(r.VacancyID); ok {
			excluded.Append(headhunter.Exclude(corpus.Record(i)))
		}
	}

	if err := excluded.ToFile(path); err != nil {
		return err
	}

	log.Info("appended to exclude file", zap.String("filename", path), zap.Int("count", len(res.Recommendations)))
	return nil
}

// candidateQuery resolves the text to score from args, a history file or the
// questionnaire, in that order.
func candidateQuery(ctx context.Context, cmd *cobra.Command, args []string, d *deps) (string, *profile.Profile, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil, nil
	}

	if path, _ := cmd.Flags().GetString("history"); path != "" {
		history, err := readHistory(path)
		if err != nil {
			return "", nil, err
		}

		if ex := d.extractor(); ex != nil {
			p, err := ex.Extract(ctx, history)
			if err == nil {
				return p.Text(), &p, nil
			}
			d.logger.Warn("profile extraction failed, falling back to patterns", zap.Error(err))
		}

		p := profile.FromHistory(history)
		return p.Text(), &p, nil
	}

	answers, err := askAnswers()
	if err != nil {
		return "", nil, err
	}
	p := profile.FromAnswers(answers)
	return p.Text(), &p, nil
}

func readHistory(path string) ([]profile.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	var history []profile.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parsing history %q: %w", path, err)
	}
	return history, nil
}

func askAnswers() (profile.Answers, error) {
	var a profile.Answers
	questions := []struct {
		label  string
		target *string
	}{
		{"Current or desired position", &a.Title},
		{"Company", &a.Company},
		{"Skills, comma separated", &a.Skills},
		{"Years of experience", &a.Years},
		{"Interests and goals", &a.Interests},
	}

	for _, q := range questions {
		prompt := promptui.Prompt{Label: q.label}
		value, err := prompt.Run()
		if err != nil {
			return profile.Answers{}, err
		}
		*q.target = value
	}
	return a, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
