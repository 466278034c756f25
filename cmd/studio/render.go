package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/jobs"
	"github.com/phrazzld/scry-studio/internal/notify"
)

var jobHeaders = []string{"ID", "Kind", "Status", "Title", "Score", "Detail", "Created"}

var jobAligns = []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}

func renderJobs(list []domain.Job, now time.Time) string {
	if len(list) == 0 {
		return "No jobs"
	}
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			job.ID.String(),
			string(job.Kind),
			string(job.Status),
			notify.DisplayTitle(job),
			formatScore(job.Score),
			jobDetail(job, now),
			job.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return renderTable(jobHeaders, rows, jobAligns)
}

func formatScore(score *int) string {
	if score == nil {
		return "-"
	}
	return strconv.Itoa(*score)
}

// jobDetail summarizes the payload or failure of a job.
func jobDetail(job domain.Job, now time.Time) string {
	switch job.Status {
	case domain.JobStatusFailed:
		return job.Error
	case domain.JobStatusGenerating:
		if job.Kind == domain.JobKindQuiz && job.QuestionCount > 0 {
			return fmt.Sprintf("%d questions requested", job.QuestionCount)
		}
		return ""
	}

	switch job.Kind {
	case domain.JobKindQuiz:
		return fmt.Sprintf("%d questions", len(job.Questions))
	case domain.JobKindAudio:
		return audioDetail(job.Audio, now)
	}
	return ""
}

func audioDetail(audio *domain.AudioArtifact, now time.Time) string {
	switch {
	case audio == nil:
		return "audio removed"
	case audio.ExpiresAt == nil:
		return "audio ready"
	case audio.Expired(now):
		return "link expired"
	default:
		return "link expires in " + audio.ExpiresAt.Sub(now).Round(time.Minute).String()
	}
}

// formatChange renders one registry change as a single log line.
func formatChange(c jobs.Change, now time.Time) string {
	job := c.Job
	switch c.Op {
	case jobs.OpRemove:
		return fmt.Sprintf("%s  removed  %s %s", now.Local().Format(time.TimeOnly), job.Kind, job.ID)
	case jobs.OpReset:
		return fmt.Sprintf("%s  resynced", now.Local().Format(time.TimeOnly))
	}
	line := fmt.Sprintf("%s  %-10s %s %s %q", now.Local().Format(time.TimeOnly), job.Status, job.Kind, job.ID, notify.DisplayTitle(job))
	if detail := jobDetail(job, now); detail != "" {
		line += "  " + detail
	}
	return line
}
