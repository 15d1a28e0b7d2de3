package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"social-autoreply-platform/internal/ai"
	"social-autoreply-platform/internal/database"
	"social-autoreply-platform/internal/instagram"
	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/internal/telemetry"
	"social-autoreply-platform/internal/webhook"
	"social-autoreply-platform/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Outcome is the terminal state of one comment event.
type Outcome string

const (
	OutcomeFiltered      Outcome = "filtered"
	OutcomeUnresolved    Outcome = "unresolved"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeDisabled      Outcome = "disabled"
	OutcomeReplied       Outcome = "replied"
	OutcomePublishFailed Outcome = "publish_failed"
	OutcomeFailed        Outcome = "failed"
)

// ReplyGenerator produces reply text. Implementations never fail; they
// return fallback text instead.
type ReplyGenerator interface {
	Generate(ctx context.Context, comment, contextText string) ai.Reply
}

// ReplyPublisher posts a reply under a comment.
type ReplyPublisher interface {
	ReplyToComment(ctx context.Context, commentID, message, accessToken string) error
}

type AutoReplyConfig struct {
	WebhookObject   string
	DefaultContext  string
	ClaimStaleAfter time.Duration
}

// CommentResult records what happened to one comment change.
type CommentResult struct {
	Event    webhook.CommentEvent
	Outcome  Outcome
	Reason   string
	TenantID string
	Reply    string
	Err      error
}

// AutoReplyService runs the comment pipeline for webhook deliveries.
type AutoReplyService struct {
	cfg       AutoReplyConfig
	store     database.Store
	resolver  *OwnershipResolver
	generator ReplyGenerator
	publisher ReplyPublisher
	metrics   *telemetry.Metrics
}

func NewAutoReplyService(
	cfg AutoReplyConfig,
	store database.Store,
	resolver *OwnershipResolver,
	generator ReplyGenerator,
	publisher ReplyPublisher,
	metrics *telemetry.Metrics,
) *AutoReplyService {
	return &AutoReplyService{
		cfg:       cfg,
		store:     store,
		resolver:  resolver,
		generator: generator,
		publisher: publisher,
		metrics:   metrics,
	}
}

// ProcessDelivery parses and handles one raw notification body.
func (s *AutoReplyService) ProcessDelivery(ctx context.Context, deliveryID string, body []byte) []CommentResult {
	log := logger.With("delivery_id", deliveryID)

	payload, err := webhook.Parse(body)
	if err != nil {
		log.Warn("Dropping malformed webhook payload", "error", err)
		s.metrics.RecordDelivery("malformed")
		return nil
	}
	return s.HandlePayload(ctx, deliveryID, payload)
}

// HandlePayload walks every entry and change sequentially. A failure in one
// comment never stops its siblings.
func (s *AutoReplyService) HandlePayload(ctx context.Context, deliveryID string, payload *webhook.Payload) []CommentResult {
	ctx, span := otel.Tracer("autoreply").Start(ctx, "autoreply.delivery")
	defer span.End()
	span.SetAttributes(attribute.String("webhook.delivery_id", deliveryID))

	log := logger.With("delivery_id", deliveryID)

	if payload.Object != s.cfg.WebhookObject {
		log.Info("Ignoring webhook for unexpected object", "object", payload.Object)
		s.metrics.RecordDelivery("ignored_object")
		return nil
	}
	s.metrics.RecordDelivery("accepted")
	log.Info("Processing webhook notification", "entries", len(payload.Entry))

	var results []CommentResult
	for _, entry := range payload.Entry {
		businessID := strings.TrimSpace(entry.ID.String())
		if businessID == "" {
			log.Info("Skipping entry without business id")
			continue
		}

		for _, change := range entry.Changes {
			if change.Field != webhook.CommentsField {
				continue
			}
			res := s.processChange(ctx, log, businessID, change)
			s.metrics.RecordCommentOutcome(string(res.Outcome))
			results = append(results, res)
		}
	}

	span.SetAttributes(attribute.Int("webhook.comments", len(results)))
	return results
}

func (s *AutoReplyService) processChange(ctx context.Context, log *slog.Logger, businessID string, change webhook.Change) (res CommentResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while processing comment",
				"business_id", businessID,
				"comment_id", res.Event.CommentID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	ev, err := webhook.DecodeComment(businessID, change.Value)
	res.Event = ev
	if err != nil {
		log.Info("Skipping undecodable comment value", "business_id", businessID, "error", err)
		res.Outcome = OutcomeFiltered
		res.Reason = "undecodable"
		return res
	}

	return s.ProcessComment(ctx, log, ev)
}

// ProcessComment runs one comment through filter, ownership, dedupe,
// toggle, context, generation, publish and record.
func (s *AutoReplyService) ProcessComment(ctx context.Context, log *slog.Logger, ev webhook.CommentEvent) CommentResult {
	ctx, span := otel.Tracer("autoreply").Start(ctx, "autoreply.comment")
	defer span.End()
	span.SetAttributes(
		attribute.String("instagram.business_id", ev.BusinessID),
		attribute.String("instagram.comment_id", ev.CommentID),
		attribute.String("instagram.post_id", ev.PostID),
	)

	log = log.With("business_id", ev.BusinessID, "comment_id", ev.CommentID, "post_id", ev.PostID)
	res := CommentResult{Event: ev}

	finish := func(outcome Outcome, reason string, err error) CommentResult {
		res.Outcome = outcome
		res.Reason = reason
		res.Err = err
		span.SetAttributes(attribute.String("autoreply.outcome", string(outcome)))
		if err != nil {
			span.RecordError(err)
			if outcome == OutcomeFailed || outcome == OutcomePublishFailed {
				span.SetStatus(codes.Error, err.Error())
			}
		}
		return res
	}

	if reason := ev.Eligibility(); reason != webhook.SkipNone {
		log.Info("Skipping comment", "reason", string(reason))
		return finish(OutcomeFiltered, string(reason), nil)
	}

	resolution, err := s.resolver.Resolve(ctx, ev.BusinessID, ev.PostID)
	if errors.Is(err, ErrTenantNotFound) {
		log.Warn("No tenant owns this comment; dropping")
		return finish(OutcomeUnresolved, "", err)
	}
	if err != nil {
		log.Error("Ownership resolution failed", "error", err)
		return finish(OutcomeFailed, "resolve", err)
	}

	tenant := resolution.Tenant
	res.TenantID = tenant.ID.Hex()
	log = log.With("tenant_id", res.TenantID)
	log.Debug("Resolved comment owner", "resolved_by", resolution.Method, "bound", resolution.Bound)

	if rec, err := s.store.GetReply(ctx, tenant.ID, ev.CommentID); err == nil {
		if !s.claimIsStale(rec) {
			log.Info("Comment already replied; skipping", "status", rec.Status)
			return finish(OutcomeDuplicate, "", nil)
		}
		// The claim holder died before publishing; ClaimReply takes it over.
		log.Warn("Found stale reply claim", "claimed_at", rec.ClaimedAt)
	} else if !errors.Is(err, database.ErrNotFound) {
		log.Error("Reply lookup failed", "error", err)
		return finish(OutcomeFailed, "reply_lookup", err)
	}

	state, err := s.store.GetPostState(ctx, tenant.ID, ev.PostID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && !state.AutoReplyEnabled) {
		log.Info("Auto-reply disabled for post; skipping")
		return finish(OutcomeDisabled, "", nil)
	}
	if err != nil {
		log.Error("Post state lookup failed", "error", err)
		return finish(OutcomeFailed, "state_lookup", err)
	}

	claimed, err := s.store.ClaimReply(ctx, &models.ReplyRecord{
		TenantID:    tenant.ID,
		PostID:      ev.PostID,
		CommentID:   ev.CommentID,
		CommentText: ev.Text,
	}, s.cfg.ClaimStaleAfter)
	if err != nil {
		log.Error("Reply claim failed", "error", err)
		return finish(OutcomeFailed, "claim", err)
	}
	if !claimed {
		log.Info("Comment claimed by a concurrent delivery; skipping")
		return finish(OutcomeDuplicate, "claimed", nil)
	}

	contextText, err := s.loadContext(ctx, tenant, ev.PostID)
	if err != nil {
		log.Error("Context lookup failed", "error", err)
		s.release(ctx, log, tenant, ev.CommentID)
		return finish(OutcomeFailed, "context_lookup", err)
	}

	reply := s.generator.Generate(ctx, ev.Text, contextText)
	if reply.Fallback {
		log.Warn("Using fallback reply", "error", reply.Err)
	} else {
		log.Info("Generated reply", "model", reply.Model, "reply", reply.Text)
	}
	res.Reply = reply.Text

	if err := s.publisher.ReplyToComment(ctx, ev.CommentID, reply.Text, tenant.AccessToken); err != nil {
		attrs := []any{"error", err}
		var apiErr *instagram.APIError
		if errors.As(err, &apiErr) {
			attrs = append(attrs, "status", apiErr.StatusCode, "graph_code", apiErr.Code, "body", apiErr.Body)
		}
		log.Error("Failed to publish reply", attrs...)
		s.release(ctx, log, tenant, ev.CommentID)
		return finish(OutcomePublishFailed, "", err)
	}

	if err := s.store.CompleteReply(ctx, tenant.ID, ev.CommentID, reply.Text); err != nil {
		// The reply is live; the pending claim keeps redeliveries out until it goes stale.
		log.Error("Reply published but record update failed", "error", err)
		return finish(OutcomeReplied, "record_failed", err)
	}

	log.Info("Replied to comment")
	return finish(OutcomeReplied, "", nil)
}

// claimIsStale reports whether rec is a pending claim old enough to take over.
func (s *AutoReplyService) claimIsStale(rec *models.ReplyRecord) bool {
	if rec.Status != models.ReplyStatusPending || s.cfg.ClaimStaleAfter <= 0 {
		return false
	}
	return time.Since(rec.ClaimedAt) > s.cfg.ClaimStaleAfter
}

func (s *AutoReplyService) loadContext(ctx context.Context, tenant *models.Tenant, postID string) (string, error) {
	pc, err := s.store.GetPostContext(ctx, tenant.ID, postID)
	if errors.Is(err, database.ErrNotFound) {
		return s.cfg.DefaultContext, nil
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(pc.Text) == "" {
		return s.cfg.DefaultContext, nil
	}
	return pc.Text, nil
}

func (s *AutoReplyService) release(ctx context.Context, log *slog.Logger, tenant *models.Tenant, commentID string) {
	if err := s.store.ReleaseReply(ctx, tenant.ID, commentID); err != nil {
		log.Error("Failed to release reply claim", "error", err)
	}
}
