// Package model defines the data types shared across the sync engine:
// the opaque local/remote records, the canonical comparable payload,
// and the engine's own durable records (mappings, snapshots, op log).
package model

import "time"

// Priority is the three-value priority scale the engine normalizes
// both sides onto.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// AcceptanceCriterion is a single checkable subitem of a task.
type AcceptanceCriterion struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// Task is the opaque local record, owned by the local CLI. The engine
// never constructs one except by parsing the local CLI's plain-text
// output.
type Task struct {
	ID                  string
	FilePath            string
	Title               string
	Description         string
	Status              string
	Assignee            string
	Labels              []string
	Priority            string
	AcceptanceCriteria  []AcceptanceCriterion
	ImplementationPlan  string
	ImplementationNotes string
}

// Issue is the opaque remote record, owned by the remote tracker.
type Issue struct {
	Key         string
	ID          string
	Summary     string
	Description string
	Status      string
	Assignee    string
	Labels      []string
	Priority    string
	IssueType   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	URL         string
}

// NormalizedPayload is the canonical comparable form of either side.
// Field order here is the field-sort order used for hashing; changing
// it changes the hash of every payload, so it should not be done
// casually (see normalize.Hash).
type NormalizedPayload struct {
	Title              string
	Description        string
	Status             string
	Priority           string
	Labels             []string
	Assignee           string
	AcceptanceCriteria []AcceptanceCriterion
}

// Side identifies which half of a mapping a snapshot belongs to.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// Mapping is the durable binding between a local task and a remote
// issue. Exactly one per bound pair.
type Mapping struct {
	LocalID   string    `json:"localId"`
	RemoteKey string    `json:"remoteKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is the canonicalized payload last observed for one side of
// a mapping, and the hash that serves as the three-way-merge base.
type Snapshot struct {
	LocalID   string            `json:"localId"`
	Side      Side              `json:"side"`
	Hash      string            `json:"hash"`
	Payload   NormalizedPayload `json:"payload"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// OpKind enumerates the operations recorded in the append-only op log.
type OpKind string

const (
	OpMap    OpKind = "map"
	OpUnmap  OpKind = "unmap"
	OpPush   OpKind = "push"
	OpPull   OpKind = "pull"
	OpSync   OpKind = "sync"
	OpResolve OpKind = "resolve"
	OpImport OpKind = "import"
)

// OpStatus is the outcome recorded for an OpLogEntry.
type OpStatus string

const (
	OpStatusOK     OpStatus = "ok"
	OpStatusFailed OpStatus = "failed"
)

// OpLogEntry is one line of the append-only operations audit log.
type OpLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Operation OpKind    `json:"operation"`
	LocalID   string    `json:"localId"`
	RemoteKey string    `json:"remoteKey"`
	Status    OpStatus  `json:"status"`
	Detail    string    `json:"detail"`
}

// SyncState is the per-mapping classification produced by the state
// classifier.
type SyncState string

const (
	StateInSync    SyncState = "InSync"
	StateNeedsPush SyncState = "NeedsPush"
	StateNeedsPull SyncState = "NeedsPull"
	StateConflict  SyncState = "Conflict"
	StateUnknown   SyncState = "Unknown"
)

// ConflictStrategy selects how a Conflict-state mapping is resolved.
type ConflictStrategy string

const (
	StrategyPreferLocal  ConflictStrategy = "prefer-local"
	StrategyPreferRemote ConflictStrategy = "prefer-remote"
	StrategyPrompt       ConflictStrategy = "prompt"
	StrategyManual       ConflictStrategy = "manual"
)

// ConflictField enumerates the fields a field-level conflict can be
// decomposed into.
type ConflictField string

const (
	FieldTitle       ConflictField = "title"
	FieldDescription ConflictField = "description"
	FieldStatus      ConflictField = "status"
	FieldAssignee    ConflictField = "assignee"
	FieldPriority    ConflictField = "priority"
	FieldLabels      ConflictField = "labels"
)

// AllConflictFields is the fixed, ordered set of fields that can
// conflict, used whenever a stable iteration order is needed (conflict
// UI rendering, deterministic tests).
var AllConflictFields = []ConflictField{
	FieldTitle, FieldDescription, FieldStatus, FieldAssignee, FieldPriority, FieldLabels,
}

// FieldConflict is one differing field discovered during three-way
// comparison, carrying the base/local/remote values it was decomposed
// from.
type FieldConflict struct {
	Field       ConflictField
	LocalValue  any
	RemoteValue any
	BaseValue   any
}
