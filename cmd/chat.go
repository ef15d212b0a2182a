package main

import (
	"github.com/spf13/cobra"

	"document-assistant/internal/helper"
)

var (
	querySession string
	queryTopK    int
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from the ingested documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var clearSessionCmd = &cobra.Command{
	Use:   "clear-session [session-id]",
	Short: "Delete the conversation history of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runClearSession,
}

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Print the conversation history of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	queryCmd.Flags().StringVarP(&querySession, "session", "s", "", "Session id for conversation memory")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "Number of chunks to retrieve (default from config)")
	_ = queryCmd.MarkFlagRequired("session")

	rootCmd.AddCommand(queryCmd, clearSessionCmd, historyCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	r, err := app.RAG(cmd.Context())
	if err != nil {
		return err
	}
	res, err := r.Query(cmd.Context(), args[0], querySession, queryTopK)
	if err != nil {
		return err
	}

	cmd.Printf("%s\n\n", res.Answer)
	if len(res.Sources) == 0 {
		return nil
	}
	cmd.Println("Sources:")
	for i, s := range res.Sources {
		cmd.Printf("  [%d] doc %d, chunk %d (score %.4f)\n", i+1, s.DocID, s.ChunkIndex, s.Score)
	}
	return nil
}

func runClearSession(cmd *cobra.Command, args []string) error {
	sessions, err := app.Sessions(cmd.Context())
	if err != nil {
		return err
	}
	if err := sessions.Clear(cmd.Context(), args[0]); err != nil {
		return err
	}
	cmd.Printf("Session %s cleared\n", args[0])
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	sessions, err := app.Sessions(cmd.Context())
	if err != nil {
		return err
	}
	history, err := sessions.History(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return helper.PrettyPrint(cmd.OutOrStdout(), history)
}
