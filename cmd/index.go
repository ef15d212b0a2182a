package main

import (
	"errors"

	"github.com/spf13/cobra"

	"document-assistant/internal/chromemdb"
)

var indexEncryptionKey string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Back up or restore the embedded vector index",
}

var indexExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the document namespace to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexExport,
}

var indexImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Load the document namespace from a file written by export",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexImport,
}

func init() {
	indexCmd.PersistentFlags().StringVar(&indexEncryptionKey, "key", "", "AES key (32 bytes) to encrypt or decrypt the file")

	indexCmd.AddCommand(indexExportCmd, indexImportCmd)
	rootCmd.AddCommand(indexCmd)
}

func chromemIndex() (*chromemdb.VectorDBManager, error) {
	index, err := app.Index()
	if err != nil {
		return nil, err
	}
	m, ok := index.(*chromemdb.VectorDBManager)
	if !ok {
		return nil, errors.New("export and import are only supported for the chromem backend")
	}
	return m, nil
}

func runIndexExport(cmd *cobra.Command, args []string) error {
	m, err := chromemIndex()
	if err != nil {
		return err
	}
	namespace := app.Config().VectorStore.Namespace
	if err := m.Export(args[0], indexEncryptionKey, namespace); err != nil {
		return err
	}
	cmd.Printf("Exported %d vectors from %s to %s\n", m.Count(namespace), namespace, args[0])
	return nil
}

func runIndexImport(cmd *cobra.Command, args []string) error {
	m, err := chromemIndex()
	if err != nil {
		return err
	}
	namespace := app.Config().VectorStore.Namespace
	if err := m.Import(args[0], indexEncryptionKey, namespace); err != nil {
		return err
	}
	cmd.Printf("Imported %d vectors into %s\n", m.Count(namespace), namespace)
	return nil
}
