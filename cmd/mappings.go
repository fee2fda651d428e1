package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func mappingCommands(q *qamInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "inspect configured integration mappings",
	}

	cmd.AddCommand(mappingListCommands(q))
	cmd.AddCommand(mappingValidateCommands(q))

	return cmd
}

func mappingListCommands(q *qamInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list mappings with their endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			offset := 0
			for {
				mappings, err := q.mapper.GetAllMappings(ctx, 100, offset)
				if err != nil {
					return err
				}
				if len(mappings) == 0 {
					break
				}
				for _, m := range mappings {
					fmt.Printf("%-30s %-20s %s -> %s (%d fields)\n",
						m.Name, m.Endpoint, m.SourceType, m.DestinationType, len(m.FieldMappings))
				}
				offset += len(mappings)
			}
			return nil
		},
	}

	return cmd
}

func mappingValidateCommands(q *qamInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "validate every configured mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			var bad int
			offset := 0
			for {
				mappings, err := q.mapper.GetAllMappings(ctx, 100, offset)
				if err != nil {
					return err
				}
				if len(mappings) == 0 {
					break
				}
				for _, m := range mappings {
					if err := m.ValidateIntegrationMapping(); err != nil {
						bad++
						fmt.Printf("FAIL %s: %v\n", m.Name, err)
						continue
					}
					fmt.Printf("OK   %s\n", m.Name)
				}
				offset += len(mappings)
			}
			if bad > 0 {
				return fmt.Errorf("%d invalid mapping(s)", bad)
			}
			return nil
		},
	}

	return cmd
}
