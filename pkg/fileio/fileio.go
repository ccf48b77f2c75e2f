// Package fileio loads payload lists and saves text artifacts.
package fileio

import (
	"fmt"
	"os"
	"strings"
)

// ReadLines reads path as newline-delimited text. Invalid UTF-8 is replaced,
// trailing whitespace of the file and of every line is dropped. An empty
// file yields a single empty line.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	text := strings.ToValidUTF8(string(data), "�")
	text = strings.TrimRight(text, " \t\r\n")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return lines, nil
}

// ReadText reads path unchanged, byte for byte.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteText writes content to path, replacing any existing file.
func WriteText(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
