package file

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"timed-quiz-runner/internal/domain"
)

// AnswerKeySource reads answer keys from a local path or an http(s) URL.
// Relative paths resolve against baseDir.
type AnswerKeySource struct {
	baseDir string
	client  *http.Client
}

func NewAnswerKeySource(baseDir string, client *http.Client) *AnswerKeySource {
	if client == nil {
		client = http.DefaultClient
	}
	return &AnswerKeySource{baseDir: baseDir, client: client}
}

func (s *AnswerKeySource) LoadAnswerKey(ctx context.Context, ref string) (domain.AnswerKey, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", domain.ErrAnswerKeyUnavailable)
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return s.fetch(ctx, ref)
	}
	return s.read(ref)
}

func (s *AnswerKeySource) read(ref string) (domain.AnswerKey, error) {
	path := ref
	if !filepath.IsAbs(path) && s.baseDir != "" {
		path = filepath.Join(s.baseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrAnswerKeyUnavailable, path, err)
	}
	defer f.Close()
	return domain.ParseAnswerKey(f)
}

func (s *AnswerKeySource) fetch(ctx context.Context, url string) (domain.AnswerKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrAnswerKeyUnavailable, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", domain.ErrAnswerKeyUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: fetch %s: status %d", domain.ErrAnswerKeyUnavailable, url, resp.StatusCode)
	}
	return domain.ParseAnswerKey(resp.Body)
}
