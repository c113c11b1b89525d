package service

import (
	"context"
	"errors"
	"time"

	"github.com/papercomputeco/mnemo/pkg/audit"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/permission"
)

// CreateRequest describes one entry to create. Content, Priority, Source and
// Confidence are required; Layer is required outside agent scope.
type CreateRequest struct {
	ID           string          `json:"id,omitempty"`
	Scope        memory.Scope    `json:"scope,omitempty"`
	Namespace    string          `json:"namespace,omitempty"`
	OwnerAgentID string          `json:"owner_agent_id,omitempty"`
	Content      string          `json:"content"`
	Tags         []string        `json:"tags,omitempty"`
	Priority     memory.Priority `json:"priority"`
	Layer        memory.Layer    `json:"layer,omitempty"`
	Source       memory.Source   `json:"source"`
	Confidence   *float64        `json:"confidence"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
}

// Ref addresses an existing entry. Scope and namespace follow the
// ResolveTarget defaults.
type Ref struct {
	ID        string       `json:"id"`
	Scope     memory.Scope `json:"scope,omitempty"`
	Namespace string       `json:"namespace,omitempty"`
}

// UpdateRequest carries the fields to change. Nil fields are left as is.
type UpdateRequest struct {
	Ref

	Content    *string          `json:"content,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
	Priority   *memory.Priority `json:"priority,omitempty"`
	Layer      *memory.Layer    `json:"layer,omitempty"`
	Confidence *float64         `json:"confidence,omitempty"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`

	// IfMatch is the etag the caller last saw. A mismatch forks a conflict
	// entry instead of updating.
	IfMatch string `json:"if_match,omitempty"`
}

// DeleteRequest deletes one entry, optionally guarded by an etag.
type DeleteRequest struct {
	Ref

	IfMatch string `json:"if_match,omitempty"`
}

// ListRequest pages through one partition in creation order.
type ListRequest struct {
	Scope     memory.Scope  `json:"scope,omitempty"`
	Namespace string        `json:"namespace,omitempty"`
	Limit     int           `json:"limit,omitempty"`
	Cursor    memory.Cursor `json:"-"`
}

// PromoteRequest copies an entry into another scope. SourceNamespace and
// Namespace (the target namespace) follow the ResolveTarget defaults of
// their scopes; an empty SourceNamespace outside agent scope falls back to
// Namespace.
type PromoteRequest struct {
	ID              string       `json:"id"`
	SourceScope     memory.Scope `json:"source_scope"`
	SourceNamespace string       `json:"source_namespace,omitempty"`
	TargetScope     memory.Scope `json:"target_scope"`
	Namespace       string       `json:"namespace,omitempty"`
}

// Create validates and authorizes every request before persisting any of
// them, then writes them in order. On a storage failure the entries written
// so far are returned with the error.
func (s *Service) Create(ctx context.Context, actor permission.Actor, reqs []CreateRequest) (created []*memory.Entry, err error) {
	ctx, end := s.span(ctx, "create", actor)
	defer func() { end(err) }()

	if len(reqs) == 0 {
		return nil, memory.Errorf(memory.CodeInvalidParams, "at least one item is required")
	}
	if len(reqs) > s.bulkLimit {
		return nil, memory.Errorf(memory.CodeInvalidParams, "%d items exceed the bulk limit of %d", len(reqs), s.bulkLimit)
	}

	type prepared struct {
		entry *memory.Entry
		store memory.Store
	}

	batch := make([]prepared, 0, len(reqs))
	for i, req := range reqs {
		entry, store, err := s.prepareCreate(actor, req)
		if err != nil {
			var merr *memory.Error
			if errors.As(err, &merr) && len(reqs) > 1 {
				merr = &memory.Error{Code: merr.Code, Message: merr.Message, Details: map[string]any{"index": i}}
				err = merr
			}
			s.observe(ctx, "create", audit.ActionCreate, actor, req.Scope, req.Namespace, req.ID, err, nil)
			return nil, err
		}
		batch = append(batch, prepared{entry: entry, store: store})
	}

	created = make([]*memory.Entry, 0, len(batch))
	for _, p := range batch {
		stored, err := p.store.Add(ctx, p.entry)
		s.observe(ctx, "create", audit.ActionCreate, actor, p.entry.Scope, p.entry.Namespace, p.entry.ID, err,
			map[string]any{"layer": string(p.entry.Layer), "source": string(p.entry.Source)})
		if err != nil {
			return created, err
		}
		created = append(created, stored)
	}

	return created, nil
}

func (s *Service) prepareCreate(actor permission.Actor, req CreateRequest) (*memory.Entry, memory.Store, error) {
	if err := actor.Validate(); err != nil {
		return nil, nil, err
	}

	scope, namespace, err := ResolveTarget(actor, req.Scope, req.Namespace)
	if err != nil {
		return nil, nil, err
	}

	if req.Content == "" {
		return nil, nil, memory.Errorf(memory.CodeInvalidParams, "content is required")
	}
	if req.Priority == "" {
		return nil, nil, memory.Errorf(memory.CodeInvalidParams, "priority is required")
	}
	if req.Source == "" {
		return nil, nil, memory.Errorf(memory.CodeInvalidParams, "source is required")
	}
	if req.Confidence == nil {
		return nil, nil, memory.Errorf(memory.CodeInvalidParams, "confidence is required")
	}

	priority, err := memory.ParsePriority(string(req.Priority))
	if err != nil {
		return nil, nil, err
	}
	source, err := memory.ParseSource(string(req.Source))
	if err != nil {
		return nil, nil, err
	}

	layer := memory.LayerWorking
	switch {
	case req.Layer != "":
		layer, err = memory.ParseLayer(string(req.Layer))
		if err != nil {
			return nil, nil, err
		}
	case scope != memory.ScopeAgent:
		return nil, nil, memory.Errorf(memory.CodeInvalidParams, "layer is required for %s scope", scope)
	}

	store, err := s.resolve(actor, scope, permission.ActionWrite)
	if err != nil {
		return nil, nil, err
	}

	owner := req.OwnerAgentID
	if owner == "" {
		owner = actor.AgentID
	}
	if scope == memory.ScopeAgent && owner != actor.AgentID {
		return nil, nil, memory.Errorf(memory.CodeForbidden, "agent scope entries must be owned by %q", actor.AgentID)
	}

	now := s.now().UTC()
	entry, err := memory.NewEntry(memory.Entry{
		ID:           req.ID,
		Scope:        scope,
		Namespace:    namespace,
		OwnerAgentID: owner,
		Content:      req.Content,
		Tags:         req.Tags,
		Priority:     priority,
		Layer:        layer,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    req.ExpiresAt,
		Source:       source,
		Confidence:   *req.Confidence,
		Version:      1,
	})
	if err != nil {
		return nil, nil, err
	}

	return entry, store, nil
}

// Read fetches one entry.
func (s *Service) Read(ctx context.Context, actor permission.Actor, ref Ref) (entry *memory.Entry, err error) {
	ctx, end := s.span(ctx, "read", actor)
	defer func() { end(err) }()

	scope, namespace, err := ResolveTarget(actor, ref.Scope, ref.Namespace)
	if err != nil {
		return nil, err
	}
	defer func() {
		s.observe(ctx, "read", audit.ActionRead, actor, scope, namespace, ref.ID, err, nil)
	}()

	_, entry, err = s.load(ctx, actor, scope, namespace, ref.ID, permission.ActionRead)
	return entry, err
}

// load authorizes action, fetches the entry and enforces agent-scope
// ownership.
func (s *Service) load(ctx context.Context, actor permission.Actor, scope memory.Scope, namespace, id string, action permission.Action) (memory.Store, *memory.Entry, error) {
	if id == "" {
		return nil, nil, memory.Errorf(memory.CodeInvalidParams, "id is required")
	}

	store, err := s.resolve(actor, scope, action)
	if err != nil {
		return nil, nil, err
	}

	entry, err := store.Get(ctx, id, scope, namespace)
	if err != nil {
		return nil, nil, err
	}

	if err := permission.CheckOwner(actor, entry); err != nil {
		return nil, nil, err
	}

	return store, entry, nil
}

// Update applies req to the entry. When req.IfMatch is set and differs from
// the current etag, the changes are applied to a new conflict entry instead,
// which is returned together with a CONFLICT error.
func (s *Service) Update(ctx context.Context, actor permission.Actor, req UpdateRequest) (entry *memory.Entry, err error) {
	ctx, end := s.span(ctx, "update", actor)
	defer func() { end(err) }()

	scope, namespace, err := ResolveTarget(actor, req.Scope, req.Namespace)
	if err != nil {
		return nil, err
	}

	details := map[string]any{}
	defer func() {
		s.observe(ctx, "update", audit.ActionUpdate, actor, scope, namespace, req.ID, err, details)
	}()

	store, current, err := s.load(ctx, actor, scope, namespace, req.ID, permission.ActionWrite)
	if err != nil {
		return nil, err
	}

	changed := current.Clone()
	if err := applyUpdate(changed, req); err != nil {
		return nil, err
	}

	if req.IfMatch != "" && req.IfMatch != current.ETag {
		forked, err := s.fork(ctx, store, actor, changed, current.ID)
		if err != nil {
			return nil, err
		}
		details["conflict_entry"] = forked.ID
		return forked, memory.ConflictError(current.ID, forked.ID)
	}

	changed.Version = current.Version + 1
	changed.UpdatedAt = s.now().UTC()
	changed.ETag = memory.NewETag(changed)
	if err := changed.Validate(); err != nil {
		return nil, err
	}

	details["version"] = changed.Version
	return store.Update(ctx, changed)
}

func applyUpdate(e *memory.Entry, req UpdateRequest) error {
	if req.Content != nil {
		if *req.Content == "" {
			return memory.Errorf(memory.CodeInvalidParams, "content cannot be empty")
		}
		e.Content = *req.Content
	}
	if req.Tags != nil {
		e.Tags = memory.NormalizeTags(req.Tags)
	}
	if req.Priority != nil {
		p, err := memory.ParsePriority(string(*req.Priority))
		if err != nil {
			return err
		}
		e.Priority = p
	}
	if req.Layer != nil {
		l, err := memory.ParseLayer(string(*req.Layer))
		if err != nil {
			return err
		}
		e.Layer = l
	}
	if req.Confidence != nil {
		if !memory.ValidConfidence(*req.Confidence) {
			return memory.Errorf(memory.CodeInvalidParams, "confidence %v outside [0, 1]", *req.Confidence)
		}
		e.Confidence = *req.Confidence
	}
	if req.ExpiresAt != nil {
		t := *req.ExpiresAt
		e.ExpiresAt = &t
	}

	return nil
}

// Delete removes an entry. A stale IfMatch forks the current entry into a
// conflict entry, leaves the original in place and returns CONFLICT.
func (s *Service) Delete(ctx context.Context, actor permission.Actor, req DeleteRequest) (forked *memory.Entry, err error) {
	ctx, end := s.span(ctx, "delete", actor)
	defer func() { end(err) }()

	scope, namespace, err := ResolveTarget(actor, req.Scope, req.Namespace)
	if err != nil {
		return nil, err
	}

	details := map[string]any{}
	defer func() {
		s.observe(ctx, "delete", audit.ActionDelete, actor, scope, namespace, req.ID, err, details)
	}()

	store, current, err := s.load(ctx, actor, scope, namespace, req.ID, permission.ActionWrite)
	if err != nil {
		return nil, err
	}

	if req.IfMatch != "" && req.IfMatch != current.ETag {
		forked, err = s.fork(ctx, store, actor, current, current.ID)
		if err != nil {
			return nil, err
		}
		details["conflict_entry"] = forked.ID
		return forked, memory.ConflictError(current.ID, forked.ID)
	}

	ok, err := store.Delete(ctx, current.ID, scope, namespace)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, memory.NotFoundError(current.ID, scope, namespace)
	}

	return nil, nil
}

// List returns one page of a partition. Agent scope only lists the actor's
// own entries.
func (s *Service) List(ctx context.Context, actor permission.Actor, req ListRequest) (page *memory.ListResult, err error) {
	ctx, end := s.span(ctx, "list", actor)
	defer func() { end(err) }()

	scope, namespace, err := ResolveTarget(actor, req.Scope, req.Namespace)
	if err != nil {
		return nil, err
	}
	defer func() {
		s.observe(ctx, "list", audit.ActionList, actor, scope, namespace, "", err, nil)
	}()

	limit, err := s.PageSize(req.Limit)
	if err != nil {
		return nil, err
	}

	store, err := s.resolve(actor, scope, permission.ActionRead)
	if err != nil {
		return nil, err
	}

	owner := ""
	if scope == memory.ScopeAgent {
		owner = actor.AgentID
	}

	return store.List(ctx, scope, namespace, limit, req.Cursor, owner)
}

// PageSize normalizes a requested page size: 0 selects the default, and any
// value outside [1, max] is rejected.
func (s *Service) PageSize(limit int) (int, error) {
	if limit == 0 {
		return s.defaultPageSize, nil
	}
	if limit < 1 || limit > s.maxPageSize {
		return 0, memory.Errorf(memory.CodeInvalidParams, "limit %d outside [1, %d]", limit, s.maxPageSize)
	}
	return limit, nil
}

// Promote copies an entry from its source scope into the target scope. When
// the target already holds an entry with the same id and different content,
// a new conflict entry is written next to it and returned; the existing
// target entry is left untouched.
func (s *Service) Promote(ctx context.Context, actor permission.Actor, req PromoteRequest) (entry *memory.Entry, err error) {
	ctx, end := s.span(ctx, "promote", actor)
	defer func() { end(err) }()

	sourceNamespace := req.SourceNamespace
	if sourceNamespace == "" && req.SourceScope != "" && req.SourceScope != memory.ScopeAgent {
		sourceNamespace = req.Namespace
	}
	sourceScope, sourceNamespace, err := ResolveTarget(actor, req.SourceScope, sourceNamespace)
	if err != nil {
		return nil, err
	}
	targetScope, targetNamespace, err := ResolveTarget(actor, req.TargetScope, req.Namespace)
	if err != nil {
		return nil, err
	}

	details := map[string]any{
		"source_scope":     string(sourceScope),
		"source_namespace": sourceNamespace,
	}
	defer func() {
		s.observe(ctx, "promote", audit.ActionPromote, actor, targetScope, targetNamespace, req.ID, err, details)
	}()

	if sourceScope == targetScope && sourceNamespace == targetNamespace {
		return nil, memory.Errorf(memory.CodeInvalidParams, "source and target partitions are the same")
	}

	_, source, err := s.load(ctx, actor, sourceScope, sourceNamespace, req.ID, permission.ActionRead)
	if err != nil {
		return nil, err
	}

	target, err := s.resolve(actor, targetScope, permission.ActionWrite)
	if err != nil {
		return nil, err
	}

	promoted := source.Clone()
	promoted.Scope = targetScope
	promoted.Namespace = targetNamespace
	promoted.Conflict = false
	promoted.ConflictOf = ""
	if targetScope == memory.ScopeAgent {
		promoted.OwnerAgentID = actor.AgentID
	}

	existing, err := target.Get(ctx, source.ID, targetScope, targetNamespace)
	switch {
	case err == nil && existing.Content != source.Content:
		forked, err := s.fork(ctx, target, actor, promoted, existing.ID)
		if err != nil {
			return nil, err
		}
		details["conflict_entry"] = forked.ID
		return forked, nil
	case err != nil && !errors.Is(err, memory.ErrNotFound):
		return nil, err
	}

	s.stamp(promoted)
	return target.Add(ctx, promoted)
}
