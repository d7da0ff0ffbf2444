// Package cmd implements the runs commands for mrlead.
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrlead/mrlead/internal/gitlab"
	"github.com/mrlead/mrlead/internal/render"
	"github.com/mrlead/mrlead/internal/store"
)

// runsCmd groups the run-archive subcommands
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect archived review runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived review runs, newest first",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one archived review run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsLimit int

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list (0 for all)")
}

func openRunStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Output.RunsDir)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	runStore, err := openRunStore()
	if err != nil {
		return err
	}
	defer runStore.Close()

	runs, err := runStore.ListRuns(runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tPROJECT\tMR\tPROVIDER\tBLOCKERS\tTITLE")
	for _, run := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t!%d\t%s\t%d\t%s\n",
			run.ID, run.CreatedAt.Format("2006-01-02 15:04"),
			run.ProjectPath, run.MRIID, run.Provider, run.Blockers, run.MRTitle)
	}
	return w.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	runStore, err := openRunStore()
	if err != nil {
		return err
	}
	defer runStore.Close()

	run, err := runStore.GetRun(id)
	if err != nil {
		return err
	}

	// The archive keeps enough MR metadata to re-render the report.
	mr := &gitlab.MRData{
		ProjectPath: run.ProjectPath,
		IID:         run.MRIID,
		Title:       run.MRTitle,
		SHA:         run.SHA,
	}
	render.NewRenderer(os.Stdout).Report(mr, run.Result, run.Stats)
	return nil
}
