// Package propositions implements the proposition lifecycle and the
// cross-matchmaker proposition-request brokering.
package propositions

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/oggyb/agency-backoffice/internal/app"
	"github.com/oggyb/agency-backoffice/internal/authz"
	"github.com/oggyb/agency-backoffice/internal/db"
	apperr "github.com/oggyb/agency-backoffice/internal/errors"
	"github.com/oggyb/agency-backoffice/internal/notify"
	"github.com/oggyb/agency-backoffice/internal/repository"
)

// Response verbs accepted on the wire. They map onto the stored statuses
// interested / not_interested.
const (
	ResponseAccepted = "accepted"
	ResponseRejected = "rejected"
)

// Service contains the business logic on top of repository and cache layers.
type Service struct {
	appCtx       *app.AppContext
	users        *repository.UserRepository
	propositions *repository.PropositionRepository
	requests     *repository.PropositionRequestRepository
}

// NewService creates a propositions service with dependencies from
// AppContext. Dependencies include:
//   - DB connection (via the three repositories)
//   - RedisCache for the inbox badge counters
//   - Notifier for fire-and-forget events
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:       appCtx,
		users:        repository.NewUserRepository(appCtx.DB),
		propositions: repository.NewPropositionRepository(appCtx.DB),
		requests:     repository.NewPropositionRequestRepository(appCtx.DB),
	}
}

// Create sends a proposition about the (reference, compatible) pair to one or
// both of its members.
//
// Behavior:
//   - Reference and compatible must differ; at least one recipient flag must
//     be set; the message is required.
//   - The matchmaker must own the compatible user's assignment, or hold an
//     accepted proposition request from itself to that user's matchmaker for
//     this exact pair.
//   - The triple conflict check and the fan-out insert run in one
//     transaction (see PropositionRepository.CreateForRecipients).
func (s *Service) Create(
	ctx context.Context,
	actor authz.Actor,
	referenceID, compatibleID uint64,
	sendToReference, sendToCompatible bool,
	message string,
) ([]db.Proposition, error) {
	if actor.Role != db.RoleMatchmaker {
		return nil, apperr.Unauthorized("only matchmakers may send propositions")
	}
	if referenceID == compatibleID {
		return nil, apperr.Conflict("reference and compatible users must differ")
	}
	if !sendToReference && !sendToCompatible {
		return nil, apperr.Validation("recipients", "select at least one recipient")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("message", "message is required")
	}

	reference, err := s.users.GetByID(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	compatible, err := s.users.GetByID(ctx, compatibleID)
	if err != nil {
		return nil, err
	}
	if reference.Role != db.RoleUser || compatible.Role != db.RoleUser {
		return nil, apperr.Validation("compatible_user_id", "propositions are between user accounts")
	}

	if !authz.OwnsAssignment(actor, compatible) {
		granted := false
		if compatible.AssignedMatchmakerID != nil {
			granted, err = s.requests.HasAcceptedGrant(ctx,
				actor.ID, *compatible.AssignedMatchmakerID, referenceID, compatibleID)
			if err != nil {
				return nil, err
			}
		}
		if !granted {
			return nil, apperr.Unauthorized("compatible user is not in your portfolio and no accepted proposition request grants it")
		}
	}

	var recipients []uint64
	if sendToReference {
		recipients = append(recipients, referenceID)
	}
	if sendToCompatible {
		recipients = append(recipients, compatibleID)
	}

	created, err := s.propositions.CreateForRecipients(ctx,
		actor.ID, referenceID, compatibleID, recipients, message, time.Now())
	if err != nil {
		return nil, err
	}

	for _, p := range created {
		_ = s.appCtx.RedisCache.InvalidatePendingPropositions(ctx, p.RecipientUserID)
		s.appCtx.Notifier.Publish(ctx, notify.SubjectPropositionCreated, actor.ID, p.RecipientUserID,
			map[string]any{"proposition_id": p.ID})
	}

	s.appCtx.Logger.Info("proposition created",
		"matchmaker", actor.ID, "reference", referenceID,
		"compatible", compatibleID, "recipients", len(created))
	return created, nil
}

// Respond records the recipient's one-time answer to a proposition.
//
// Behavior:
//   - Only the designated recipient may respond.
//   - Already-answered and expired propositions are conflicts; expiry is
//     recomputed here and enforced again inside the guarded close.
//   - A rejection requires a non-empty response message.
func (s *Service) Respond(ctx context.Context, actor authz.Actor, propositionID uint64, verb, responseMessage string) error {
	prop, err := s.propositions.GetByID(ctx, propositionID)
	if err != nil {
		return err
	}
	if prop.RecipientUserID != actor.ID {
		return apperr.Unauthorized("only the recipient may respond to this proposition")
	}
	if prop.Status != db.PropositionPending {
		return apperr.Conflict("proposition already answered")
	}
	now := time.Now()
	if prop.IsExpired(now) {
		return apperr.Conflict("proposition expired")
	}

	responseMessage = strings.TrimSpace(responseMessage)
	var status string
	switch verb {
	case ResponseAccepted:
		status = db.PropositionInterested
	case ResponseRejected:
		if responseMessage == "" {
			return apperr.Validation("response_message", "a message is required when declining")
		}
		status = db.PropositionNotInterested
	default:
		return apperr.Validation("status", "status must be accepted or rejected")
	}

	if err := s.propositions.Close(ctx, propositionID, status, responseMessage, now); err != nil {
		return err
	}

	_ = s.appCtx.RedisCache.InvalidatePendingPropositions(ctx, actor.ID)
	s.appCtx.Notifier.Publish(ctx, notify.SubjectPropositionResponded, actor.ID, prop.MatchmakerID,
		map[string]any{"proposition_id": prop.ID, "status": status})

	s.appCtx.Logger.Info("proposition answered",
		"proposition", propositionID, "recipient", actor.ID, "status", status)
	return nil
}

// CreateRequest opens the cross-matchmaker handshake for a pair.
//
// Behavior:
//   - The sender must own the reference user's assignment.
//   - The compatible user must be assigned to a different matchmaker; owning
//     both sides needs no handshake.
//   - At most one pending request per tuple (transactional in the repo).
func (s *Service) CreateRequest(ctx context.Context, actor authz.Actor, referenceID, compatibleID uint64, message string) (*db.PropositionRequest, error) {
	if actor.Role != db.RoleMatchmaker {
		return nil, apperr.Unauthorized("only matchmakers may send proposition requests")
	}
	if referenceID == compatibleID {
		return nil, apperr.Conflict("reference and compatible users must differ")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("message", "message is required")
	}

	reference, err := s.users.GetByID(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if !authz.OwnsAssignment(actor, reference) {
		return nil, apperr.Unauthorized("reference user is not in your portfolio")
	}

	compatible, err := s.users.GetByID(ctx, compatibleID)
	if err != nil {
		return nil, err
	}
	if compatible.AssignedMatchmakerID == nil {
		return nil, apperr.Conflict("compatible user has no assigned matchmaker")
	}
	if *compatible.AssignedMatchmakerID == actor.ID {
		return nil, apperr.Conflict("compatible user is already in your portfolio")
	}

	req, err := s.requests.CreatePending(ctx,
		referenceID, compatibleID, actor.ID, *compatible.AssignedMatchmakerID, message)
	if err != nil {
		return nil, err
	}

	s.appCtx.Notifier.Publish(ctx, notify.SubjectPropRequestCreated, actor.ID, req.ToMatchmakerID,
		map[string]any{"request_id": req.ID})
	s.appCtx.Logger.Info("proposition request created",
		"from", actor.ID, "to", req.ToMatchmakerID, "request", req.ID)
	return req, nil
}

// RespondRequest settles a pending handshake exactly once.
//
// Behavior:
//   - Only the addressed matchmaker may respond.
//   - A rejection requires a reason; an acceptance requires an organizer of
//     "vous" or "moi" and records share_phone.
func (s *Service) RespondRequest(
	ctx context.Context,
	actor authz.Actor,
	requestID uint64,
	verb, rejectionReason string,
	sharePhone bool,
	organizer string,
) error {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ToMatchmakerID != actor.ID {
		return apperr.Unauthorized("only the addressed matchmaker may respond")
	}
	if req.Status != db.RequestPending {
		return apperr.Conflict("proposition request already answered")
	}

	now := time.Now()
	switch verb {
	case ResponseAccepted:
		if organizer != db.OrganizerVous && organizer != db.OrganizerMoi {
			return apperr.Validation("organizer", "organizer must be vous or moi")
		}
		if err := s.requests.Close(ctx, requestID, db.RequestAccepted, nil, sharePhone, &organizer, now); err != nil {
			return err
		}
	case ResponseRejected:
		rejectionReason = strings.TrimSpace(rejectionReason)
		if rejectionReason == "" {
			return apperr.Validation("rejection_reason", "a reason is required when rejecting")
		}
		if err := s.requests.Close(ctx, requestID, db.RequestRejected, &rejectionReason, false, nil, now); err != nil {
			return err
		}
	default:
		return apperr.Validation("status", "status must be accepted or rejected")
	}

	s.appCtx.Notifier.Publish(ctx, notify.SubjectPropRequestResponded, actor.ID, req.FromMatchmakerID,
		map[string]any{"request_id": req.ID, "status": verb})
	s.appCtx.Logger.Info("proposition request answered",
		"request", requestID, "by", actor.ID, "status", verb)
	return nil
}

// ListForRecipient pages through a user's proposition inbox.
func (s *Service) ListForRecipient(ctx context.Context, actor authz.Actor, token *string, limit int) ([]db.Proposition, *string, error) {
	return s.propositions.ListForRecipient(ctx, actor.ID, token, limit)
}

// ListForMatchmaker pages through the propositions a matchmaker sent.
func (s *Service) ListForMatchmaker(ctx context.Context, actor authz.Actor, token *string, limit int) ([]db.Proposition, *string, error) {
	if actor.Role != db.RoleMatchmaker {
		return nil, nil, apperr.Unauthorized("only matchmakers have a proposition outbox")
	}
	return s.propositions.ListForMatchmaker(ctx, actor.ID, token, limit)
}

// RequestInbox returns the handshake requests addressed to the matchmaker.
func (s *Service) RequestInbox(ctx context.Context, actor authz.Actor) ([]db.PropositionRequest, error) {
	if actor.Role != db.RoleMatchmaker {
		return nil, apperr.Unauthorized("only matchmakers receive proposition requests")
	}
	return s.requests.ListInbox(ctx, actor.ID)
}

// RequestOutbox returns the handshake requests the matchmaker sent.
func (s *Service) RequestOutbox(ctx context.Context, actor authz.Actor) ([]db.PropositionRequest, error) {
	if actor.Role != db.RoleMatchmaker {
		return nil, apperr.Unauthorized("only matchmakers send proposition requests")
	}
	return s.requests.ListOutbox(ctx, actor.ID)
}

// CountOpen returns the recipient's count of pending, non-expired
// propositions. Cache-first strategy:
//  1. Attempts to read from Redis (propositions:pending:userID).
//  2. On a miss, falls back to the DB and refreshes Redis with a 1h TTL.
func (s *Service) CountOpen(ctx context.Context, actor authz.Actor) (int64, error) {
	if n, ok, err := s.appCtx.RedisCache.GetPendingPropositions(ctx, actor.ID); err == nil && ok {
		return n, nil
	}

	count, err := s.propositions.CountOpenForRecipient(ctx, actor.ID, time.Now())
	if err != nil {
		return 0, err
	}

	_ = s.appCtx.RedisCache.SetPendingPropositions(ctx, actor.ID, count)

	s.appCtx.Logger.Debug("pending proposition count refreshed",
		"user", actor.ID, "count", strconv.FormatInt(count, 10))
	return count, nil
}
