package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskbot/internal/logger"
	"taskbot/internal/models"
	"taskbot/internal/recurrence"
	repo "taskbot/internal/repository"
)

const templateCounter = "template"

type TemplateService struct {
	templates TemplateRepository
	prefix    string
	loc       *time.Location
}

func NewTemplateService(templates TemplateRepository, prefix string, loc *time.Location) *TemplateService {
	return &TemplateService{
		templates: templates,
		prefix:    prefix,
		loc:       loc,
	}
}

type CreateTemplateInput struct {
	Text      string
	CreatorID int64
	EndDate   *time.Time
	MaxCount  *int
}

// CreateFromText parses a recurrence phrase out of the free text and seeds
// next_due with the rule's first occurrence.
func (s *TemplateService) CreateFromText(ctx context.Context, in CreateTemplateInput) (*models.RecurringTemplate, error) {
	rule, content := recurrence.ParseRule(in.Text)
	if rule == nil {
		return nil, NewValidationError("recurrence", "unrecognized recurrence expression")
	}
	if !rule.Valid() {
		return nil, NewValidationError("recurrence", "invalid recurrence rule")
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if in.MaxCount != nil && *in.MaxCount < 1 {
		return nil, NewValidationError("max_count", "instance limit must be positive")
	}

	now := time.Now().In(s.loc)
	nextDue, ok := recurrence.Next(*rule, now, now)
	if !ok {
		return nil, NewValidationError("recurrence", "rule never produces an occurrence")
	}

	n, err := s.templates.AllocateNextID(ctx, templateCounter)
	if err != nil {
		return nil, fmt.Errorf("allocate public id: %w", err)
	}

	tpl := &models.RecurringTemplate{
		ID:        uuid.New(),
		PublicID:  fmt.Sprintf("%s-%05d", s.prefix, n),
		Content:   content,
		Rule:      *rule,
		EndDate:   in.EndDate,
		MaxCount:  in.MaxCount,
		NextDue:   nextDue,
		Active:    true,
		CreatorID: in.CreatorID,
	}

	if err := s.templates.CreateTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	logger.Info("Service: recurring template created",
		zap.String("public_id", tpl.PublicID),
		zap.String("rule_type", string(rule.Type)),
		zap.Time("next_due", nextDue))
	return tpl, nil
}

func (s *TemplateService) List(ctx context.Context, creatorID int64) ([]*models.RecurringTemplate, error) {
	return s.templates.ListTemplatesByCreator(ctx, creatorID)
}

func (s *TemplateService) Deactivate(ctx context.Context, id uuid.UUID, actorID int64) error {
	tpl, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if tpl.CreatorID != actorID {
		return NewPermissionDenied("deactivate this template", actorID)
	}

	tpl.Active = false
	if err := s.templates.UpdateTemplate(ctx, tpl); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

func (s *TemplateService) Delete(ctx context.Context, id uuid.UUID, actorID int64) error {
	tpl, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if tpl.CreatorID != actorID {
		return NewPermissionDenied("delete this template", actorID)
	}

	if err := s.templates.DeleteTemplate(ctx, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

func (s *TemplateService) get(ctx context.Context, id uuid.UUID) (*models.RecurringTemplate, error) {
	tpl, err := s.templates.GetTemplateByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewNotFound("template", id.String())
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tpl, nil
}
