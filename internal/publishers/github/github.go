package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"subforge/internal/logger"
	"subforge/internal/publishers"
)

// Publisher commits the rendered document through the GitHub contents API.
type Publisher struct{}

type githubFileRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // Base64 encoded content
	Sha     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type githubFileResponse struct {
	Sha string `json:"sha"`
}

type settings struct {
	token, owner, repo, path, branch, message string

	apiURL     string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	proxyURL   string
}

func parseSettings(doc *publishers.Document, config map[string]interface{}) (settings, error) {
	s := settings{timeout: 30 * time.Second, retryDelay: time.Second}
	s.token, _ = config["token"].(string)
	s.owner, _ = config["owner"].(string)
	s.repo, _ = config["repo"].(string)
	s.path, _ = config["path"].(string)
	s.branch, _ = config["branch"].(string)
	s.message, _ = config["message"].(string)
	s.proxyURL, _ = config["_proxy_url"].(string)

	apiBase, _ := config["api_url"].(string)
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}
	if t, ok := config["_timeout"].(time.Duration); ok {
		s.timeout = t
	}
	if r, ok := config["retries"].(int); ok {
		s.retries = r
	}
	if d, ok := config["_retry_delay"].(time.Duration); ok {
		s.retryDelay = d
	}

	if s.token == "" || s.owner == "" || s.repo == "" || s.path == "" {
		return s, fmt.Errorf("github publisher requires token, owner, repo, and path")
	}
	if s.message == "" {
		s.message = fmt.Sprintf("Update subscription %s [subforge]", doc.Subscription)
	}

	path := strings.TrimPrefix(strings.ReplaceAll(s.path, "{name}", doc.Subscription), "/")
	s.apiURL = fmt.Sprintf("%s/repos/%s/%s/contents/%s", strings.TrimRight(apiBase, "/"), s.owner, s.repo, path)
	return s, nil
}

func (p *Publisher) Publish(ctx context.Context, doc *publishers.Document, config map[string]interface{}) error {
	payload, err := publishers.Render(doc, config)
	if err != nil {
		return err
	}
	s, err := parseSettings(doc, config)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: s.timeout}
	if s.proxyURL != "" {
		if u, err := url.Parse(s.proxyURL); err == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
			logger.Log.Debugf("GitHub publisher using proxy: %s", s.proxyURL)
		}
	}

	sha, err := currentSha(ctx, client, s)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(githubFileRequest{
		Message: s.message,
		Content: base64.StdEncoding.EncodeToString([]byte(payload)),
		Sha:     sha,
		Branch:  s.branch,
	})

	err = withRetries(ctx, s, "upload", func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.apiURL, bytes.NewReader(body))
		if err != nil {
			return false, err
		}
		setHeaders(req, s.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return false, nil
		}
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode >= 500, fmt.Errorf("status %d: %s", resp.StatusCode, string(msg))
	})
	if err != nil {
		return fmt.Errorf("github upload failed: %w", err)
	}
	logger.Log.Infof("✅ Published '%s' to %s/%s", doc.Subscription, s.owner, s.repo)
	return nil
}

// currentSha returns the blob sha of the existing file, or "" when the file
// does not exist yet.
func currentSha(ctx context.Context, client *http.Client, s settings) (string, error) {
	var sha string
	err := withRetries(ctx, s, "fetch", func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL, nil)
		if err != nil {
			return false, err
		}
		setHeaders(req, s.token)
		if s.branch != "" {
			q := req.URL.Query()
			q.Add("ref", s.branch)
			req.URL.RawQuery = q.Encode()
		}

		resp, err := client.Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			var existing githubFileResponse
			if err := json.NewDecoder(resp.Body).Decode(&existing); err != nil {
				return false, fmt.Errorf("failed to parse github response: %w", err)
			}
			sha = existing.Sha
			logger.Log.Debugf("GitHub: file exists (SHA: %s), updating...", sha)
			return false, nil
		case http.StatusNotFound:
			logger.Log.Debugf("GitHub: file not found, creating new...")
			return false, nil
		}
		return resp.StatusCode >= 500, fmt.Errorf("status %d", resp.StatusCode)
	})
	if err != nil {
		return "", fmt.Errorf("github fetch failed: %w", err)
	}
	return sha, nil
}

func setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}

// withRetries runs attempt until it succeeds, reports a permanent failure,
// or the retry budget is spent.
func withRetries(ctx context.Context, s settings, what string, attempt func() (retry bool, err error)) error {
	var err error
	for i := 0; i <= s.retries; i++ {
		logger.Log.Debugf("GitHub: %s (attempt %d/%d)", what, i+1, s.retries+1)
		var retry bool
		if retry, err = attempt(); err == nil || !retry {
			return err
		}
		if i < s.retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}
	return err
}

func init() {
	publishers.Register("github", func() publishers.Publisher { return &Publisher{} })
}
