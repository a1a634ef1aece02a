package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/richardpark-msft/vigil/internal/metadata"
)

const metadataSchemaVersion = "1.0"

func newMetadataCommand(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:    "metadata",
		Short:  "Output the CLI command manifest as JSON",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest := metadata.GenerateManifest(metadataSchemaVersion, "vigil", rootCmd)

			data, err := json.MarshalIndent(manifest, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal manifest: %w", err)
			}

			data = append(data, '\n')
			_, err = cmd.OutOrStdout().Write(data)
			if err != nil {
				return fmt.Errorf("failed to write manifest: %w", err)
			}
			return nil
		},
	}
}
