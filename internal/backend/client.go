// Package backend is the HTTP client for the remote session store. Every
// call is deadline-bounded and transport failures are translated into a
// stable error taxonomy (auth, onboarding, quota, transient) so callers can
// branch on the condition instead of the message.
package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/baaaaaaaka/claude_code_memory/internal/observations"
	"github.com/baaaaaaaka/claude_code_memory/internal/transcript"
)

const (
	defaultTimeout = 30 * time.Second
	// Session-mutating calls carry larger payloads and get more headroom.
	mutateTimeout = 60 * time.Second

	// interactionChunkSize bounds one AddInteractionsBatch request.
	interactionChunkSize = 500
)

type Client struct {
	BaseURL    string
	Credential string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func New(baseURL, credential string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Credential: credential,
		HTTPClient: &http.Client{},
	}
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Current    int    `json:"current"`
			Limit      int    `json:"limit"`
			UpgradeURL string `json:"upgradeUrl"`
		} `json:"details"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, timeout time.Duration, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Credential)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Deadline expiry and connection failures are both transient from
		// the caller's point of view.
		return &TransientError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
		return nil
	}
	return c.translateError(method+" "+path, resp)
}

func (c *Client) translateError(op string, resp *http.Response) error {
	var parsed apiError
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = json.Unmarshal(data, &parsed)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{Detail: parsed.Error.Message}
	case parsed.Error.Code == "onboarding_required":
		return &OnboardingError{Detail: parsed.Error.Message}
	case parsed.Error.Code == "quota_exceeded" || resp.StatusCode == http.StatusTooManyRequests:
		return &QuotaError{
			Current:    parsed.Error.Details.Current,
			Limit:      parsed.Error.Details.Limit,
			UpgradeURL: parsed.Error.Details.UpgradeURL,
		}
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusGatewayTimeout:
		return &TransientError{Op: op, Err: fmt.Errorf("backend returned %d", resp.StatusCode)}
	}
	if parsed.Error.Message != "" {
		return fmt.Errorf("%s: %s", op, parsed.Error.Message)
	}
	return fmt.Errorf("%s: backend returned %d", op, resp.StatusCode)
}

// ValidateCredential confirms the stored credential is accepted.
func (c *Client) ValidateCredential(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/auth/validate", defaultTimeout, nil, nil)
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out struct {
		Projects []Project `json:"projects"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/projects", defaultTimeout, nil, &out)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out.Projects, nil
}

func (c *Client) CreateProject(ctx context.Context, name, path string) (Project, error) {
	in := map[string]string{"name": name, "path": path}
	var out Project
	if err := c.do(ctx, http.MethodPost, "/v1/projects", defaultTimeout, in, &out); err != nil {
		return Project{}, err
	}
	return out, nil
}

// UpsertSession submits an assembled session keyed by its external source
// id; the backend either creates a session or merges into the existing one
// and reports which happened.
func (c *Client) UpsertSession(ctx context.Context, req UpsertSessionRequest) (*UpsertSessionResponse, error) {
	var out UpsertSessionResponse
	if err := c.do(ctx, http.MethodPut, "/v1/sessions", mutateTimeout, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSessionEndTime(ctx context.Context, sessionID string, endedAt time.Time) error {
	in := map[string]any{"endedAt": endedAt}
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/end"
	err := c.do(ctx, http.MethodPost, path, defaultTimeout, in, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

// AddInteractionsBatch submits interactions in chunks. A failed chunk is
// logged and counted; the remaining chunks are still attempted.
func (c *Client) AddInteractionsBatch(ctx context.Context, sessionID string, interactions []InteractionPayload) (BatchResult, error) {
	var result BatchResult
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/interactions"
	for start := 0; start < len(interactions); start += interactionChunkSize {
		end := start + interactionChunkSize
		if end > len(interactions) {
			end = len(interactions)
		}
		chunk := interactions[start:end]
		in := map[string]any{"interactions": chunk}
		if err := c.do(ctx, http.MethodPost, path, mutateTimeout, in, nil); err != nil {
			c.logger().Warn("interaction chunk failed", "session", sessionID, "offset", start, "error", err)
			result.Failed += len(chunk)
			continue
		}
		result.Processed += len(chunk)
	}
	return result, nil
}

// GetPreferences returns nil when the backend has no stored preferences.
func (c *Client) GetPreferences(ctx context.Context) (*Preferences, error) {
	var out Preferences
	err := c.do(ctx, http.MethodGet, "/v1/preferences", defaultTimeout, nil, &out)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadAttachment implements transcript.Uploader.
func (c *Client) UploadAttachment(ctx context.Context, data []byte, mediaType string, interactionIndex int) (transcript.UploadResult, error) {
	filename := uuid.NewString()
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		filename += exts[0]
	}
	in := map[string]any{
		"data":             base64.StdEncoding.EncodeToString(data),
		"mediaType":        mediaType,
		"interactionIndex": interactionIndex,
		"filename":         filename,
	}
	var out struct {
		StorageLocation string `json:"storageLocation"`
		PublicURL       string `json:"publicUrl"`
		Filename        string `json:"filename"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/attachments", mutateTimeout, in, &out); err != nil {
		return transcript.UploadResult{}, err
	}
	if out.Filename == "" {
		out.Filename = filename
	}
	return transcript.UploadResult{
		StorageLocation: out.StorageLocation,
		PublicURL:       out.PublicURL,
		Filename:        out.Filename,
	}, nil
}

// GetPublicKey returns the recipient key for session encryption, or an
// empty key when none is configured (absence is not failure).
func (c *Client) GetPublicKey(ctx context.Context) (key string, version int, err error) {
	var out struct {
		PublicKey string `json:"publicKey"`
		Version   int    `json:"version"`
	}
	callErr := c.do(ctx, http.MethodGet, "/v1/encryption/public-key", defaultTimeout, nil, &out)
	if errors.Is(callErr, errNotFound) {
		return "", 0, nil
	}
	if callErr != nil {
		return "", 0, callErr
	}
	return out.PublicKey, out.Version, nil
}

func (c *Client) GetQuota(ctx context.Context) (*Quota, error) {
	var out Quota
	if err := c.do(ctx, http.MethodGet, "/v1/quota", defaultTimeout, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetObservations fetches up to limit observations for a project plus the
// total count. A project unknown to the backend yields an empty result.
func (c *Client) GetObservations(ctx context.Context, projectID string, limit int) ([]observations.Observation, int, error) {
	path := "/v1/projects/" + url.PathEscape(projectID) + "/observations?limit=" + strconv.Itoa(limit)
	var out struct {
		Observations []observations.Observation `json:"observations"`
		Total        int                        `json:"total"`
	}
	err := c.do(ctx, http.MethodGet, path, defaultTimeout, nil, &out)
	if errors.Is(err, errNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return out.Observations, out.Total, nil
}
