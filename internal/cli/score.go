package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score submission and rating commands",
	}

	cmd.AddCommand(newScoreSubmitCmd())
	cmd.AddCommand(newScoreListCmd[BestScore]("best", "Show the best-score table", "/api/v1/scores/best"))
	cmd.AddCommand(newScoreListCmd[RecentPlay]("recent", "Show recent plays, newest first", "/api/v1/scores/recent"))
	cmd.AddCommand(newScoreRatingCmd())

	return cmd
}

// parseDifficulty accepts a chart index or its short name (pst, prs, ftr, byd, etr)
func parseDifficulty(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	for i, name := range difficultyNames {
		if strings.EqualFold(s, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown difficulty %q", s)
}

type submitFlags struct {
	id         string
	song       string
	difficulty string
	score      int
	shinyPure  int
	pure       int
	far        int
	lost       int
	clearType  int
	health     int
	speed      int
}

func newScoreSubmitCmd() *cobra.Command {
	var f submitFlags

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a play result",
		RunE: func(cmd *cobra.Command, args []string) error {
			difficulty, err := parseDifficulty(f.difficulty)
			if err != nil {
				return err
			}

			req := map[string]any{
				"submission_id":       f.id,
				"song_id":             f.song,
				"difficulty":          difficulty,
				"score":               f.score,
				"shiny_perfect_count": f.shinyPure,
				"perfect_count":       f.pure,
				"near_count":          f.far,
				"miss_count":          f.lost,
				"clear_type":          f.clearType,
				"health":              f.health,
				"speed":               f.speed,
			}
			var result SubmitResult

			if err := client.Post(cmd.Context(), "/api/v1/scores", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.id, "id", "", "Submission id; reusing one replays the original result")
	cmd.Flags().StringVar(&f.song, "song", "", "Song id (required)")
	cmd.Flags().StringVar(&f.difficulty, "difficulty", "ftr", "Difficulty: pst, prs, ftr, byd, etr or index")
	cmd.Flags().IntVar(&f.score, "score", 0, "Score (required)")
	cmd.Flags().IntVar(&f.shinyPure, "shiny", 0, "Shiny pure count")
	cmd.Flags().IntVar(&f.pure, "pure", 0, "Pure count")
	cmd.Flags().IntVar(&f.far, "far", 0, "Far count")
	cmd.Flags().IntVar(&f.lost, "lost", 0, "Lost count")
	cmd.Flags().IntVar(&f.clearType, "clear-type", 1, "Clear type")
	cmd.Flags().IntVar(&f.health, "health", 100, "Final health")
	cmd.Flags().IntVar(&f.speed, "speed", 0, "Play speed in percent")
	_ = cmd.MarkFlagRequired("song")
	_ = cmd.MarkFlagRequired("score")

	return cmd
}

func newScoreListCmd[T any](use, short, path string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := path
			if limit > 0 {
				url += "?limit=" + strconv.Itoa(limit)
			}

			result := []T{}
			if err := client.Get(cmd.Context(), url, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entries")
	return cmd
}

func newScoreRatingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rating",
		Short: "Show the overall rating breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result RatingBreakdown
			if err := client.Get(cmd.Context(), "/api/v1/rating", &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}
