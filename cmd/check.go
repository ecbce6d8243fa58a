package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/enzo-prism/ship-api/internal/allowlist"
	"github.com/enzo-prism/ship-api/internal/config"
	"github.com/enzo-prism/ship-api/internal/gateway"
	"github.com/enzo-prism/ship-api/internal/usecase"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verifies every allow-listed repository upstream",
	Long: `Queries the GitHub GraphQL API for each allow-listed repository and
reports its default branch and last push time as JSON. Useful for spotting
renamed, private, or branch-migrated repos before they show up as fetch
failures in the feed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)
		token := config.GitHubToken()

		githubGateway, err := gateway.NewGitHubGateway(token, logger)
		if err != nil {
			return fmt.Errorf("failed to create GitHub gateway: %w", err)
		}
		directory := allowlist.Default()

		type checkResult struct {
			gateway.RepoCheck
			DisplayName string `json:"displayName"`
		}

		// Check failures land in the report instead of aborting the run.
		results, err := usecase.MapConcurrent(cmd.Context(), directory.Repos(), 4,
			func(ctx context.Context, repo string) (checkResult, error) {
				check, err := githubGateway.CheckRepo(ctx, repo)
				if err != nil {
					check.Error = err.Error()
				}
				return checkResult{RepoCheck: check, DisplayName: directory.DisplayName(repo)}, nil
			})
		if err != nil {
			return fmt.Errorf("failed to check repositories: %w", err)
		}

		failed := 0
		for _, result := range results {
			if result.Error != "" {
				failed++
			}
		}

		jsonData, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results to JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))

		if failed > 0 {
			return fmt.Errorf("%d of %d repositories failed the check", failed, len(results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
