package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/spf13/cobra"
)

func backupCommands(q *qamInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "snapshot integration mappings",
	}

	cmd.AddCommand(backupToCommands(q))
	cmd.AddCommand(backupToS3Commands(q))

	return cmd
}

func backupToCommands(q *qamInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use: "drive",
		Run: func(cmd *cobra.Command, args []string) {
			path, err := q.mapper.BackupMappings(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}
			logrus.Infof("mappings backed up to %s", path)
		},
	}

	return cmd
}

func backupToS3Commands(q *qamInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use: "s3",
		Run: func(cmd *cobra.Command, args []string) {
			err := q.mapper.BackupMappingsToS3(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}
		},
	}

	return cmd
}
