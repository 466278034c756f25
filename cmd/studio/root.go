package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWith(newCommandContext())
}

func newRootCommandWith(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "studio",
		Short:         "Manage a notebook's quiz and audio generation jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			ctx.stop = stop
			cmd.SetContext(sigCtx)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if ctx.stop != nil {
				ctx.stop()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.notebookFlag, "notebook", "n", "", "Notebook ID whose jobs to operate on")

	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newQuizCommand(ctx))
	rootCmd.AddCommand(newAudioCommand(ctx))
	rootCmd.AddCommand(newTokenCommand())

	return rootCmd
}
