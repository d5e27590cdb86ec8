package moderation

import (
	"bufio"
	"bytes"
	"chat-relay/errors"
	"embed"
	"io/fs"
	"path"
	"slices"
	"strings"
)

//go:embed censored/*.txt
var censoredFolder embed.FS

// DefaultDictionary is the directory of the built-in word lists.
const DefaultDictionary = "censored"

// CensoredData is the merged content of every dictionary file.
type CensoredData struct {
	Words     []string
	Languages []string
}

// CensoredLoader reads blacklisted words, one per line, from "<lang>.txt" files.
type CensoredLoader struct {
	fs fs.FS
}

func NewCensoredLoader(f fs.FS) *CensoredLoader {
	return &CensoredLoader{fs: f}
}

// NewEmbeddedLoader reads the dictionaries compiled into the binary.
func NewEmbeddedLoader() *CensoredLoader {
	return NewCensoredLoader(censoredFolder)
}

// LoadAll merges the words of every file in dir, without duplicates.
func (l *CensoredLoader) LoadAll(dir string) (*CensoredData, error) {
	entries, err := fs.ReadDir(l.fs, dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(l.fs, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		// Scanner copes with both \n and \r\n
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				uniqueWords[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}
	slices.Sort(words)

	return &CensoredData{Words: words, Languages: languages}, nil
}
