package faq

import (
	"context"
	"os"
	"strings"

	agenterrors "bikeshop-agent/internal/common/errors"
)

// FileSource serves FAQ answers from a plain-text file loaded at startup.
// Lookup scans for the first configured keyword present in both the
// question and the file, and returns that line plus up to two following
// non-empty lines.
type FileSource struct {
	content  string
	keywords []string
}

func NewFileSource(path string, keywords []string) (*FileSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, agenterrors.NewFAQLookupFailedError(err)
	}
	return &FileSource{
		content:  string(raw),
		keywords: lowerAll(keywords),
	}, nil
}

func (s *FileSource) Lookup(_ context.Context, question string) (string, error) {
	qLower := strings.ToLower(question)
	contentLower := strings.ToLower(s.content)

	for _, kw := range s.keywords {
		if !strings.Contains(qLower, kw) || !strings.Contains(contentLower, kw) {
			continue
		}

		lines := strings.Split(s.content, "\n")
		for i, line := range lines {
			if !strings.Contains(strings.ToLower(line), kw) {
				continue
			}
			section := []string{line}
			for j := 1; j <= 2 && i+j < len(lines); j++ {
				if strings.TrimSpace(lines[i+j]) != "" {
					section = append(section, lines[i+j])
				}
			}
			return strings.Join(section, "\n"), nil
		}
	}

	return "", nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
