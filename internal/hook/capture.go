// Package hook wires the parsing, encryption, and backend layers into the
// two entry points the hook runner invokes: session capture on SessionEnd
// and context injection on SessionStart.
package hook

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/baaaaaaaka/claude_code_memory/internal/backend"
	"github.com/baaaaaaaka/claude_code_memory/internal/config"
	"github.com/baaaaaaaka/claude_code_memory/internal/envelope"
	"github.com/baaaaaaaka/claude_code_memory/internal/transcript"
)

const toolName = "claude-code"

type CaptureOptions struct {
	TranscriptPath string
	// SessionDir holds sub-agent transcripts; defaults to the transcript's
	// directory.
	SessionDir    string
	LastExchanges int
	Logger        *slog.Logger
}

type CaptureResult struct {
	SessionID       string
	RemoteSessionID string
	Updated         bool
	NewInteractions int
	Encrypted       bool
	PartialFailures int
}

// CaptureSession runs the full capture pipeline for one transcript. It
// returns (nil, nil) when the transcript holds nothing worth capturing.
func CaptureSession(ctx context.Context, cfg config.Config, client *backend.Client, opts CaptureOptions) (*CaptureResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lastN := opts.LastExchanges
	if lastN == 0 {
		lastN = cfg.LastExchanges
	}

	parser := &transcript.Parser{
		LastExchanges: lastN,
		Uploader:      client,
		Logger:        logger,
	}
	session, err := parser.ParseFile(ctx, opts.TranscriptPath)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	sessionDir := opts.SessionDir
	if sessionDir == "" {
		sessionDir = filepath.Dir(opts.TranscriptPath)
	}
	parser.LinkSubagents(ctx, session, sessionDir)

	partial := session.ParseErrors + session.UploadFailures
	if cfg.MaxPartialFailures > 0 && partial > cfg.MaxPartialFailures {
		return nil, fmt.Errorf("capture untrustworthy: %d partial failures (limit %d)", partial, cfg.MaxPartialFailures)
	}

	req, err := buildUpsertRequest(cfg, session)
	if err != nil {
		return nil, err
	}
	encrypted := sealRequest(ctx, client, logger, &req, session)

	resp, err := client.UpsertSession(ctx, req)
	if err != nil {
		return nil, err
	}
	return &CaptureResult{
		SessionID:       session.SessionID,
		RemoteSessionID: resp.SessionID,
		Updated:         resp.Updated,
		NewInteractions: resp.NewInteractions,
		Encrypted:       encrypted,
		PartialFailures: partial,
	}, nil
}

func buildUpsertRequest(cfg config.Config, s *transcript.Session) (backend.UpsertSessionRequest, error) {
	req := backend.UpsertSessionRequest{
		ExternalID:          s.SessionID,
		ProjectID:           cfg.ProjectID,
		Tool:                toolName,
		GitBranch:           s.GitBranch,
		StartedAt:           s.StartedAt,
		EndedAt:             s.EndedAt,
		InputTokens:         s.InputTokens,
		OutputTokens:        s.OutputTokens,
		CacheCreationTokens: s.CacheCreationTokens,
		CacheReadTokens:     s.CacheReadTokens,
		Languages:           s.Languages,
		PrimaryModel:        s.PrimaryModel,
		ModelSwitches:       s.ModelSwitches,
		PlanCycles:          s.PlanCycles,
		Interactions:        backend.NewInteractionPayloads(s.Interactions),
		Todos:               backend.NewTodoPayloads(s.Todos),
		EncryptionStatus:    backend.EncryptionPlaintext,
	}
	for _, plan := range s.Plans {
		req.Plans = append(req.Plans, backend.PlanPayload{Timestamp: plan.Timestamp, Text: plan.Text})
	}
	for _, att := range s.Attachments {
		req.Attachments = append(req.Attachments, backend.AttachmentPayload{
			Index:            att.Index,
			InteractionIndex: att.InteractionIndex,
			Type:             att.Type,
			StorageLocation:  att.StorageLocation,
			PublicURL:        att.PublicURL,
			MediaType:        att.MediaType,
			Filename:         att.Filename,
			SizeBytes:        att.SizeBytes,
			UploadedAt:       att.UploadedAt,
		})
	}
	for _, sub := range s.SubSessions {
		data, err := json.Marshal(sub)
		if err != nil {
			return req, fmt.Errorf("marshal sub-session %s: %w", sub.AgentID, err)
		}
		req.SubSessions = append(req.SubSessions, string(data))
	}
	return req, nil
}

// sealRequest encrypts the sensitive field groups in place when a usable
// recipient key exists. Every failure path falls back to plaintext with a
// warning; confidentiality is best-effort and must never abort a capture.
func sealRequest(ctx context.Context, client *backend.Client, logger *slog.Logger, req *backend.UpsertSessionRequest, s *transcript.Session) bool {
	rawKey, keyVersion, err := client.GetPublicKey(ctx)
	if err != nil {
		logger.Warn("public key fetch failed, sending plaintext", "error", err)
		return false
	}
	if rawKey == "" {
		return false
	}
	recipient, err := envelope.ParsePublicKey(rawKey)
	if err != nil {
		logger.Warn("unusable public key, sending plaintext", "error", err)
		return false
	}

	sealed := *req
	if err := sealGroups(recipient, &sealed, s); err != nil {
		logger.Warn("encryption failed, sending plaintext", "error", err)
		return false
	}
	sealed.EncryptionStatus = backend.EncryptionEncrypted
	sealed.KeyVersion = keyVersion
	*req = sealed
	return true
}

func sealGroups(recipient *rsa.PublicKey, req *backend.UpsertSessionRequest, s *transcript.Session) error {
	if len(req.Interactions) > 0 {
		enc, err := envelope.SealJSON(recipient, req.Interactions)
		if err != nil {
			return fmt.Errorf("seal interactions: %w", err)
		}
		req.EncryptedInteractions = enc
		req.Interactions = nil
	}
	if len(req.Todos) > 0 {
		enc, err := envelope.SealJSON(recipient, req.Todos)
		if err != nil {
			return fmt.Errorf("seal todos: %w", err)
		}
		req.EncryptedTodos = enc
		req.Todos = nil
	}
	if len(req.Plans) > 0 {
		enc, err := envelope.SealJSON(recipient, req.Plans)
		if err != nil {
			return fmt.Errorf("seal plans: %w", err)
		}
		req.EncryptedPlans = enc
		req.Plans = nil
	}
	if len(req.Attachments) > 0 {
		enc, err := envelope.SealJSON(recipient, req.Attachments)
		if err != nil {
			return fmt.Errorf("seal attachments: %w", err)
		}
		req.EncryptedAttachments = enc
		req.Attachments = nil
	}
	if len(req.SubSessions) > 0 {
		enc, err := envelope.SealJSON(recipient, req.SubSessions)
		if err != nil {
			return fmt.Errorf("seal sub-sessions: %w", err)
		}
		req.EncryptedSubSessions = enc
		req.SubSessions = nil
	}
	return nil
}
