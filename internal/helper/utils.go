package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

// UniqueFileName returns a random name that keeps the lower-cased extension of
// suggested, so format dispatch still works on the stored copy.
func UniqueFileName(suggested string) (string, error) {
	id, err := GenerateUUID()
	if err != nil {
		return "", err
	}
	return id + strings.ToLower(filepath.Ext(suggested)), nil
}

// PrettyPrint writes v as indented JSON.
func PrettyPrint(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to pretty print: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
