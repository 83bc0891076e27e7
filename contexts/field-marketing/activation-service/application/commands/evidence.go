package commands

import (
	"context"
	"log/slog"
	"strings"

	application "fieldops/contexts/field-marketing/activation-service/application"
	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	"fieldops/contexts/field-marketing/activation-service/ports"
	eventsv1 "fieldops/contracts/gen/events/v1"
)

type ValidateProofsCommand struct {
	ActivationID string
	ValidatorID  string
}

type ValidateProofsUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc ValidateProofsUseCase) Execute(ctx context.Context, cmd ValidateProofsCommand) (activation entities.Activation, err error) {
	ctx, span := startSpan(ctx, "ValidateProofs")
	defer func() { endSpan(span, err) }()

	validatorID := strings.TrimSpace(cmd.ValidatorID)
	if validatorID == "" {
		return entities.Activation{}, domainerrors.ErrInvalidActivationInput
	}
	err = withVersionRetry(ctx, func(ctx context.Context) error {
		return uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
			current, err := store.GetActivation(ctx, strings.TrimSpace(cmd.ActivationID))
			if err != nil {
				return err
			}
			if current.Status != entities.ActivationStatusCompleted {
				return domainerrors.ErrProofsNotValidatable
			}
			now := uc.Clock.Now().UTC()
			current.ProofsValidated = true
			current.ProofsValidatedAt = &now
			current.ProofsValidatedBy = validatorID
			current.UpdatedAt = now
			if err := store.UpdateActivation(ctx, current); err != nil {
				return err
			}
			current.Version++
			if err := emit(ctx, store, uc.IDGen, eventsv1.EventProofsValidated, "activation_id", current.ActivationID, now, map[string]any{
				"activation_id": current.ActivationID,
				"campaign_id":   current.CampaignID,
				"validated_by":  validatorID,
			}); err != nil {
				return err
			}
			activation = current
			return nil
		})
	})
	if err != nil {
		return entities.Activation{}, err
	}

	application.ResolveLogger(uc.Logger).Info("activation proofs validated",
		"event", "activation_proofs_validated",
		"module", application.ModuleName,
		"layer", "application",
		"activation_id", activation.ActivationID,
		"validated_by", validatorID,
	)
	return activation, nil
}

type ReportIncidentCommand struct {
	AgentID      string
	ActivationID string
	Title        string
	Description  string
	Priority     entities.IncidentPriority
}

type ReportIncidentUseCase struct {
	UnitOfWork ports.UnitOfWork
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc ReportIncidentUseCase) Execute(ctx context.Context, cmd ReportIncidentCommand) (incident entities.Incident, err error) {
	ctx, span := startSpan(ctx, "ReportIncident")
	defer func() { endSpan(span, err) }()

	priority := entities.IncidentPriority(strings.ToLower(strings.TrimSpace(string(cmd.Priority))))
	if priority == "" {
		priority = entities.IncidentPriorityMedium
	}
	incident = entities.Incident{
		AgentID:      strings.TrimSpace(cmd.AgentID),
		ActivationID: strings.TrimSpace(cmd.ActivationID),
		Title:        strings.TrimSpace(cmd.Title),
		Description:  strings.TrimSpace(cmd.Description),
		Priority:     priority,
		Status:       entities.IncidentStatusOpen,
		CreatedAt:    uc.Clock.Now().UTC(),
	}
	if incident.AgentID == "" || incident.Title == "" || !entities.IsSupportedIncidentPriority(priority) {
		return entities.Incident{}, domainerrors.ErrInvalidIncidentInput
	}
	incident.IncidentID, err = uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Incident{}, err
	}

	err = uc.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context, store ports.Store) error {
		if _, err := store.GetAgent(ctx, incident.AgentID); err != nil {
			return err
		}
		if incident.ActivationID != "" {
			activation, err := store.GetActivation(ctx, incident.ActivationID)
			if err != nil {
				return err
			}
			if !activation.AgentIDs.Contains(incident.AgentID) {
				return domainerrors.ErrAgentNotAssigned
			}
		}
		if err := store.CreateIncident(ctx, incident); err != nil {
			return err
		}
		return emit(ctx, store, uc.IDGen, eventsv1.EventIncidentReported, "agent_id", incident.AgentID, incident.CreatedAt, map[string]any{
			"incident_id":   incident.IncidentID,
			"agent_id":      incident.AgentID,
			"activation_id": incident.ActivationID,
			"priority":      string(incident.Priority),
		})
	})
	if err != nil {
		return entities.Incident{}, err
	}

	application.ResolveLogger(uc.Logger).Info("incident reported",
		"event", "incident_reported",
		"module", application.ModuleName,
		"layer", "application",
		"incident_id", incident.IncidentID,
		"agent_id", incident.AgentID,
		"activation_id", incident.ActivationID,
		"priority", string(incident.Priority),
	)
	return incident, nil
}
