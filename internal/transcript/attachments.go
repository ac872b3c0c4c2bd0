package transcript

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"
)

// UploadResult describes where an attachment landed after a successful
// upload.
type UploadResult struct {
	StorageLocation string
	PublicURL       string
	Filename        string
}

// Uploader stores raw attachment bytes out of band. Implemented by the
// backend client; a nil uploader disables extraction.
type Uploader interface {
	UploadAttachment(ctx context.Context, data []byte, mediaType string, interactionIndex int) (UploadResult, error)
}

// extractAttachments uploads the inline base64 images of one user message,
// strictly in encounter order, and returns the content reference for each
// item. Reference indices start at the count of attachments already
// recorded and are allocated before any upload begins, so a failed upload
// never shifts later indices across messages; within the message a failed
// upload frees its index for the next image. URL-sourced images are left
// untouched.
func (p *Parser) extractAttachments(ctx context.Context, s *Session, items []contentItem, interactionIndex int) []string {
	refs := make([]string, 0, len(items))
	next := len(s.Attachments)
	for _, item := range items {
		if item.Source == nil {
			continue
		}
		if item.Source.Type != "base64" {
			refs = append(refs, "[image: "+item.Source.URL+"]")
			continue
		}
		if p.Uploader == nil {
			refs = append(refs, "[image]")
			continue
		}
		data, err := base64.StdEncoding.DecodeString(item.Source.Data)
		if err != nil {
			p.logger().Warn("skipping undecodable image", "interaction", interactionIndex, "error", err)
			s.UploadFailures++
			refs = append(refs, "[image]")
			continue
		}
		result, err := p.Uploader.UploadAttachment(ctx, data, item.Source.MediaType, interactionIndex)
		if err != nil {
			// One failed upload must not abort the capture.
			p.logger().Warn("attachment upload failed", "interaction", interactionIndex, "error", err)
			s.UploadFailures++
			refs = append(refs, "[image]")
			continue
		}
		s.Attachments = append(s.Attachments, AttachmentRecord{
			Index:            next,
			InteractionIndex: interactionIndex,
			Type:             "image",
			StorageLocation:  result.StorageLocation,
			PublicURL:        result.PublicURL,
			MediaType:        item.Source.MediaType,
			Filename:         result.Filename,
			SizeBytes:        int64(len(data)),
			UploadedAt:       time.Now().UTC(),
		})
		refs = append(refs, fmt.Sprintf("[attachment:%d]", next))
		next++
	}
	return refs
}

// rebaseAttachments realigns attachment records after the head of the
// interaction list was trimmed: records pointing into dropped interactions
// are removed, the rest shift down so InteractionIndex matches the retained
// list. Reference indices embedded in content are left alone; they still
// name the same records.
func (s *Session) rebaseAttachments(dropped int) {
	if len(s.Attachments) == 0 || dropped <= 0 {
		return
	}
	kept := s.Attachments[:0]
	for _, att := range s.Attachments {
		if att.InteractionIndex < dropped {
			continue
		}
		att.InteractionIndex -= dropped
		kept = append(kept, att)
	}
	if len(kept) == 0 {
		s.Attachments = nil
		return
	}
	s.Attachments = kept
}

func (p *Parser) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
