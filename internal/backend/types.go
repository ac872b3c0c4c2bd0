package backend

import (
	"time"

	"github.com/baaaaaaaka/claude_code_memory/internal/transcript"
)

// UnlimitedQuota is the backend's sentinel for a plan without a session cap.
const UnlimitedQuota = -1

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type Preferences struct {
	CaptureEnabled bool `json:"captureEnabled"`
	LastExchanges  int  `json:"lastExchanges"`
	ContextTokens  int  `json:"contextTokens"`
	IncludeDrafts  bool `json:"includeDrafts"`
}

type Quota struct {
	Current   int    `json:"current"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Tier      string `json:"tier"`
}

// Unlimited reports whether the plan has no session cap.
func (q Quota) Unlimited() bool {
	return q.Limit == UnlimitedQuota
}

type EncryptionStatus string

const (
	EncryptionPlaintext EncryptionStatus = "plaintext"
	EncryptionEncrypted EncryptionStatus = "encrypted"
)

type InteractionPayload struct {
	Type      string            `json:"type"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type TodoItemPayload struct {
	Content    string `json:"content"`
	Status     string `json:"status"`
	ActiveForm string `json:"activeForm,omitempty"`
}

type TodoSnapshotPayload struct {
	Timestamp time.Time         `json:"timestamp"`
	Items     []TodoItemPayload `json:"items"`
}

type PlanPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

type AttachmentPayload struct {
	Index            int       `json:"index"`
	InteractionIndex int       `json:"interactionIndex"`
	Type             string    `json:"type"`
	StorageLocation  string    `json:"storageLocation"`
	PublicURL        string    `json:"publicUrl,omitempty"`
	MediaType        string    `json:"mediaType"`
	Filename         string    `json:"filename,omitempty"`
	SizeBytes        int64     `json:"sizeBytes"`
	UploadedAt       time.Time `json:"uploadedAt"`
}

// UpsertSessionRequest carries one assembled session. Field groups are
// either populated in the clear or replaced by their Encrypted* equivalent;
// EncryptionStatus tells the backend which reading applies.
type UpsertSessionRequest struct {
	ExternalID          string    `json:"externalId"`
	ProjectID           string    `json:"projectId"`
	Tool                string    `json:"tool"`
	GitBranch           string    `json:"gitBranch,omitempty"`
	StartedAt           time.Time `json:"startedAt"`
	EndedAt             time.Time `json:"endedAt"`
	InputTokens         int       `json:"inputTokens"`
	OutputTokens        int       `json:"outputTokens"`
	CacheCreationTokens int       `json:"cacheCreationTokens"`
	CacheReadTokens     int       `json:"cacheReadTokens"`
	Languages           []string  `json:"languages,omitempty"`
	PrimaryModel        string    `json:"primaryModel,omitempty"`
	ModelSwitches       int       `json:"modelSwitches,omitempty"`
	PlanCycles          int       `json:"planCycles,omitempty"`

	Interactions []InteractionPayload  `json:"interactions,omitempty"`
	Todos        []TodoSnapshotPayload `json:"todos,omitempty"`
	Plans        []PlanPayload         `json:"plans,omitempty"`
	Attachments  []AttachmentPayload   `json:"attachments,omitempty"`
	SubSessions  []string              `json:"subSessions,omitempty"`

	EncryptedInteractions string `json:"encryptedInteractions,omitempty"`
	EncryptedTodos        string `json:"encryptedTodos,omitempty"`
	EncryptedPlans        string `json:"encryptedPlans,omitempty"`
	EncryptedAttachments  string `json:"encryptedAttachments,omitempty"`
	EncryptedSubSessions  string `json:"encryptedSubSessions,omitempty"`

	EncryptionStatus EncryptionStatus `json:"encryptionStatus"`
	KeyVersion       int              `json:"keyVersion,omitempty"`
}

type UpsertSessionResponse struct {
	SessionID             string `json:"sessionId"`
	Updated               bool   `json:"updated"`
	NewInteractions       int    `json:"newInteractions"`
	AnalysisTriggered     bool   `json:"analysisTriggered"`
	ObservationsTriggered bool   `json:"observationsTriggered"`
}

// BatchResult reports a chunked interaction submission; a failed chunk does
// not stop its siblings.
type BatchResult struct {
	Processed int
	Failed    int
}

// NewInteractionPayloads flattens parsed interactions into wire form.
func NewInteractionPayloads(interactions []transcript.Interaction) []InteractionPayload {
	out := make([]InteractionPayload, 0, len(interactions))
	for _, in := range interactions {
		out = append(out, InteractionPayload{
			Type:      string(in.Type),
			Content:   in.Content,
			Timestamp: in.Timestamp,
			Metadata:  in.Meta.StringMap(),
		})
	}
	return out
}

// NewTodoPayloads flattens todo snapshots into wire form.
func NewTodoPayloads(todos []transcript.TodoSnapshot) []TodoSnapshotPayload {
	out := make([]TodoSnapshotPayload, 0, len(todos))
	for _, snap := range todos {
		items := make([]TodoItemPayload, 0, len(snap.Items))
		for _, item := range snap.Items {
			items = append(items, TodoItemPayload{
				Content:    item.Content,
				Status:     item.Status,
				ActiveForm: item.ActiveForm,
			})
		}
		out = append(out, TodoSnapshotPayload{Timestamp: snap.Timestamp, Items: items})
	}
	return out
}
