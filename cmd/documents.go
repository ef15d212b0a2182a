package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"document-assistant/internal/db"
	"document-assistant/internal/helper"
	"document-assistant/internal/vectorstore"
)

var (
	ingestStrategy string
	ingestSize     int
	docsChunkLimit int
	initDBReset    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Chunk, embed and index a .txt or .pdf file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocsList,
}

var docsShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsShow,
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the documents, chunks and bookings tables",
	Args:  cobra.NoArgs,
	RunE:  runInitDB,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestStrategy, "strategy", "", "Chunking strategy: fixed or semantic (default from config)")
	ingestCmd.Flags().IntVar(&ingestSize, "size", 0, "Chunk size in characters (default from config)")
	docsShowCmd.Flags().IntVar(&docsChunkLimit, "limit", 5, "Number of chunks to print, 0 for all")
	initDBCmd.Flags().BoolVar(&initDBReset, "reset", false, "Drop existing tables first")

	docsCmd.AddCommand(docsShowCmd)
	rootCmd.AddCommand(ingestCmd, docsCmd, initDBCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := app.Config()

	strategy := ingestStrategy
	if strategy == "" {
		strategy = cfg.Ingestion.Strategy
	}
	size := ingestSize
	if size == 0 {
		size = cfg.Ingestion.ChunkSize
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("error reading %s: %w", args[0], err)
	}

	svc, err := app.Ingestion()
	if err != nil {
		return err
	}
	res, err := svc.Ingest(ctx, data, filepath.Base(args[0]), strategy, size)
	if err != nil {
		return err
	}
	return helper.PrettyPrint(cmd.OutOrStdout(), res)
}

func runDocsList(cmd *cobra.Command, args []string) error {
	store, err := app.Store()
	if err != nil {
		return err
	}
	docs, err := store.ListDocuments(cmd.Context())
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		cmd.Println("No documents ingested yet")
		return nil
	}
	for _, d := range docs {
		cmd.Printf("  %d  %-40s %4d chunks  %s\n", d.ID, d.Filename, d.TotalChunks, d.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}
	store, err := app.Store()
	if err != nil {
		return err
	}
	doc, err := store.GetDocument(cmd.Context(), id)
	if err != nil {
		return err
	}
	chunks, err := store.ListChunks(cmd.Context(), id, docsChunkLimit)
	if err != nil {
		return err
	}

	cmd.Printf("Document: %d\n\n", doc.ID)
	cmd.Printf("  Filename: %s\n", doc.Filename)
	cmd.Printf("  Chunks:   %d\n", doc.TotalChunks)
	cmd.Printf("  Created:  %s\n\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	printChunks(cmd, chunks)
	return nil
}

func printChunks(cmd *cobra.Command, chunks []db.Chunk) {
	for _, c := range chunks {
		cmd.Printf("  [%d] %s\n", c.ChunkIndex, c.VectorID)
		cmd.Printf("      %s\n", vectorstore.Preview(c.Text, 120))
	}
}

func runInitDB(cmd *cobra.Command, args []string) error {
	store, err := app.Store()
	if err != nil {
		return err
	}
	if initDBReset {
		if err := db.DropTables(cmd.Context(), store.DB()); err != nil {
			return fmt.Errorf("error dropping tables: %w", err)
		}
	}
	if err := db.InitDB(cmd.Context(), store.DB()); err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	cmd.Println("Database initialized")
	return nil
}
