package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/phrazzld/scry-studio/internal/studio"
	"github.com/spf13/cobra"
)

var errJobRemoved = errors.New("job was removed before it settled")

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and edit a notebook's generation jobs",
	}

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the notebook's jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withSession(cmd, func(s *studio.Session) error {
				fmt.Fprintln(cmd.OutOrStdout(), renderJobs(s.Jobs(), ctx.clock.Now()))
				return nil
			})
		},
	})

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Follow job changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withSession(cmd, func(s *studio.Session) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderJobs(s.Jobs(), ctx.clock.Now()))

				unsubscribe := s.Registry().Subscribe(func(c jobs.Change) {
					fmt.Fprintln(out, formatChange(c, ctx.clock.Now()))
				})
				defer unsubscribe()

				<-cmd.Context().Done()
				return nil
			})
		},
	})

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "rename JOB_ID TITLE",
		Short: "Set a job's title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(s *studio.Session) error {
				if err := s.Rename(cmd.Context(), jobID, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", jobID, args[1])
				return nil
			})
		},
	})

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "score JOB_ID SCORE",
		Short: "Record the score of a completed quiz",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			score, err := strconv.Atoi(args[1])
			if err != nil || score < 0 {
				return fmt.Errorf("invalid score %q: must be a non-negative integer", args[1])
			}
			return ctx.withSession(cmd, func(s *studio.Session) error {
				if err := s.AttachScore(cmd.Context(), jobID, score); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scored %s: %d\n", jobID, score)
				return nil
			})
		},
	})

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "delete JOB_ID",
		Short: "Delete a job and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(s *studio.Session) error {
				if err := s.Delete(cmd.Context(), jobID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", jobID)
				return nil
			})
		},
	})

	return jobsCmd
}

// submitFunc starts a job in an open session.
type submitFunc func(ctx context.Context, s *studio.Session) (domain.Job, error)

// runSubmit submits a job and, when wait is set, blocks until it settles.
func runSubmit(cmd *cobra.Command, ctx *commandContext, wait bool, submit submitFunc) error {
	return ctx.withSession(cmd, func(s *studio.Session) error {
		out := cmd.OutOrStdout()
		job, err := submit(cmd.Context(), s)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Submitted %s job %s\n", job.Kind, job.ID)
		if !wait {
			return nil
		}

		settled, err := waitForSettled(cmd.Context(), s.Registry(), job.ID)
		if err != nil {
			return err
		}
		if settled.Status == domain.JobStatusFailed {
			return fmt.Errorf("%s job %s failed: %s", settled.Kind, settled.ID, settled.Error)
		}
		fmt.Fprintln(out, renderJobs([]domain.Job{settled}, ctx.clock.Now()))
		return nil
	})
}

// waitForSettled blocks until the job leaves the generating state.
func waitForSettled(ctx context.Context, registry *jobs.Registry, id uuid.UUID) (domain.Job, error) {
	changed := make(chan struct{}, 1)
	unsubscribe := registry.Subscribe(func(jobs.Change) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		job, ok := registry.Get(id)
		if !ok {
			return domain.Job{}, errJobRemoved
		}
		if job.Status != domain.JobStatusGenerating {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return domain.Job{}, ctx.Err()
		case <-changed:
		}
	}
}
