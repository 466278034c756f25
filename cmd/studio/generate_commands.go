package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/phrazzld/scry-studio/internal/playback"
	"github.com/phrazzld/scry-studio/internal/studio"
	"github.com/spf13/cobra"
)

const (
	defaultQuestionCount = 5
	refreshWait          = 30 * time.Second
)

func newQuizCommand(ctx *commandContext) *cobra.Command {
	quizCmd := &cobra.Command{
		Use:   "quiz",
		Short: "Generate quizzes from the notebook",
	}

	var count int
	var wait bool
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Start generating a quiz",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSubmit(cmd, ctx, wait, func(c context.Context, s *studio.Session) (domain.Job, error) {
				return s.SubmitQuiz(c, count)
			})
		},
	}
	submitCmd.Flags().IntVar(&count, "count", defaultQuestionCount, "Number of questions (1-10)")
	submitCmd.Flags().BoolVar(&wait, "wait", false, "Wait for the quiz to finish generating")
	quizCmd.AddCommand(submitCmd)

	return quizCmd
}

func newAudioCommand(ctx *commandContext) *cobra.Command {
	audioCmd := &cobra.Command{
		Use:   "audio",
		Short: "Generate and manage audio overviews",
	}

	var wait bool
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Start generating an audio overview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSubmit(cmd, ctx, wait, func(c context.Context, s *studio.Session) (domain.Job, error) {
				return s.SubmitAudio(c)
			})
		},
	}
	submitCmd.Flags().BoolVar(&wait, "wait", false, "Wait for the audio to finish generating")
	audioCmd.AddCommand(submitCmd)

	var dir string
	downloadCmd := &cobra.Command{
		Use:   "download JOB_ID",
		Short: "Save a completed audio overview to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(s *studio.Session) error {
				player, err := ctx.player(s, jobID)
				if err != nil {
					return err
				}
				target := dir
				if target == "" {
					target = ctx.config.DownloadDir
				}
				path, err := download(cmd.Context(), s, player, jobID, target)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
				return nil
			})
		},
	}
	downloadCmd.Flags().StringVar(&dir, "dir", "", "Destination directory (defaults to the configured download_dir)")
	audioCmd.AddCommand(downloadCmd)

	audioCmd.AddCommand(&cobra.Command{
		Use:   "remove JOB_ID",
		Short: "Delete the audio file but keep the job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(s *studio.Session) error {
				player, err := ctx.player(s, jobID)
				if err != nil {
					return err
				}
				if err := player.Delete(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed audio of %s\n", jobID)
				return nil
			})
		},
	})

	return audioCmd
}

func (c *commandContext) player(s *studio.Session, jobID uuid.UUID) (*playback.Player, error) {
	return s.Player(jobID,
		playback.NewHTTPMedia(c.httpClient, c.clock),
		playback.HTTPDownloader{Client: c.httpClient})
}

// download saves the audio, waiting once for a fresh link when the current
// one has lapsed.
func download(ctx context.Context, s *studio.Session, player *playback.Player, jobID uuid.UUID, dir string) (string, error) {
	changed := make(chan struct{}, 1)
	unsubscribe := s.Registry().Subscribe(func(c jobs.Change) {
		if c.Op == jobs.OpUpsert && c.Job.ID == jobID {
			select {
			case changed <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	path, err := player.Download(ctx, dir)
	if !errors.Is(err, playback.ErrCredentialExpired) {
		return path, err
	}

	select {
	case <-changed:
	case <-time.After(refreshWait):
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return player.Download(ctx, dir)
}
