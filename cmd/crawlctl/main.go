// cmd/crawlctl/main.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github-star-crawler/internal/database"
	"github-star-crawler/pkg/client"
)

var (
	endpoint   string
	limit      int
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "crawlctl",
	Short: "Inspect the GitHub star crawler",
	Long: `A CLI for querying the star crawler's HTTP API.

Displays stored repositories, aggregate star statistics, and the history of
crawl runs.`,
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the most-starred repositories",
	RunE:  runTop,
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recently updated repositories",
	RunE:  runRecent,
}

var ownerCmd = &cobra.Command{
	Use:   "owner [login]",
	Short: "Show all stored repositories for an owner",
	Args:  cobra.ExactArgs(1),
	RunE:  runOwner,
}

var repoCmd = &cobra.Command{
	Use:   "repo [owner] [name]",
	Short: "Show a single repository",
	Args:  cobra.ExactArgs(2),
	RunE:  runRepo,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate star statistics",
	RunE:  runStats,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent crawl runs",
	RunE:  runRuns,
}

func init() {
	defaultEndpoint := os.Getenv("API_ENDPOINT")
	if defaultEndpoint == "" {
		defaultEndpoint = "http://localhost:8080"
	}

	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", defaultEndpoint, "crawler API endpoint")
	rootCmd.PersistentFlags().IntVar(&limit, "limit", 10, "maximum rows to fetch (1-100)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(ownerCmd)
	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func apiClient() *client.Client {
	return client.NewClient(endpoint)
}

func runTop(cmd *cobra.Command, args []string) error {
	repos, err := apiClient().TopRepositories(limit)
	if err != nil {
		return err
	}
	return printRepositories(repos)
}

func runRecent(cmd *cobra.Command, args []string) error {
	repos, err := apiClient().RecentRepositories(limit)
	if err != nil {
		return err
	}
	return printRepositories(repos)
}

func runOwner(cmd *cobra.Command, args []string) error {
	repos, err := apiClient().OwnerRepositories(args[0])
	if err != nil {
		return err
	}
	return printRepositories(repos)
}

func runRepo(cmd *cobra.Command, args []string) error {
	repo, err := apiClient().Repository(args[0], args[1])
	if err != nil {
		return err
	}
	return printRepositories([]database.Repository{*repo})
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := apiClient().Stats()
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(stats)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Repos", "Total Stars", "Avg Stars", "Max Stars", "Min Stars"})
	table.Append([]string{
		strconv.FormatInt(stats.TotalRepos, 10),
		strconv.FormatInt(stats.TotalStars, 10),
		fmt.Sprintf("%.1f", stats.AvgStars),
		strconv.FormatInt(stats.MaxStars, 10),
		strconv.FormatInt(stats.MinStars, 10),
	})
	table.Render()
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	runs, err := apiClient().Runs(limit)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(runs)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Status", "Repos", "Started", "Completed"})
	for _, r := range runs {
		completed := "-"
		if r.CompletedAt.Valid {
			completed = r.CompletedAt.Time.Local().Format(time.RFC3339)
		}
		table.Append([]string{
			strconv.FormatInt(int64(r.ID), 10),
			r.Status,
			strconv.FormatInt(int64(r.ReposCrawled), 10),
			r.StartedAt.Local().Format(time.RFC3339),
			completed,
		})
	}
	table.Render()
	return nil
}

func printRepositories(repos []database.Repository) error {
	if outputJSON {
		return printJSON(repos)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Full Name", "Stars", "Updated"})
	for _, r := range repos {
		table.Append([]string{
			strconv.FormatInt(r.ID, 10),
			r.FullName,
			strconv.FormatInt(int64(r.StargazerCount), 10),
			r.UpdatedAt.Local().Format(time.RFC3339),
		})
	}
	table.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
