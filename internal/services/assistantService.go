package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gbconnect/internal/metrics"
	"gbconnect/internal/models"
	"gbconnect/internal/repositories"
)

const (
	maxSuggestions       = 3
	suggestionCandidates = 30
	suggestionRetries    = 3
)

// AssistantService drafts listing descriptions for providers and suggests services to tourists.
type AssistantService interface {
	DescribeService(ctx context.Context, req *models.DescribeServiceRequest) (string, error)
	Suggestions(ctx context.Context, userID primitive.ObjectID) ([]models.ServiceSuggestion, error)
}

type assistantService struct {
	generator   TextGenerator
	serviceRepo repositories.ServiceRepository
	bookingRepo repositories.BookingRepository
}

// NewAssistantService accepts a nil generator; descriptions are then unavailable and
// suggestions fall back to rating order.
func NewAssistantService(generator TextGenerator, serviceRepo repositories.ServiceRepository, bookingRepo repositories.BookingRepository) AssistantService {
	return &assistantService{generator: generator, serviceRepo: serviceRepo, bookingRepo: bookingRepo}
}

func (s *assistantService) DescribeService(ctx context.Context, req *models.DescribeServiceRequest) (string, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if req.Category != "" && !models.IsValidCategory(req.Category) {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, req.Category)
	}
	if s.generator == nil {
		return "", fmt.Errorf("%w: description assistant is not configured", ErrUnavailable)
	}

	prompt := fmt.Sprintf(
		"You write listings for a tourism marketplace. Write an inviting description in Markdown "+
			"for the offer below. Use a short intro paragraph and a bullet list of highlights. "+
			"Do not invent prices. Return only Markdown.\n\nTitle: %s\nCategory: %s\nLocation: %s",
		title, req.Category, strings.TrimSpace(req.Location),
	)

	description, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Str("title", title).Msg("Description generation failed")
		return "", fmt.Errorf("%w: description generation failed", ErrUnavailable)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return "", fmt.Errorf("%w: empty description generated", ErrUnavailable)
	}

	metrics.DescriptionGeneratedTotal.Inc()
	return description, nil
}

func (s *assistantService) Suggestions(ctx context.Context, userID primitive.ObjectID) ([]models.ServiceSuggestion, error) {
	bookings, err := s.bookingRepo.FindByUser(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	booked := make(map[primitive.ObjectID]struct{}, len(bookings))
	var bookedIDs []primitive.ObjectID
	for _, b := range bookings {
		if _, seen := booked[b.ServiceID]; !seen {
			booked[b.ServiceID] = struct{}{}
			bookedIDs = append(bookedIDs, b.ServiceID)
		}
	}

	active, _, err := s.serviceRepo.FindActive(ctx, models.ServiceFilter{
		Page:            1,
		Limit:           suggestionCandidates,
		ExcludeIDs:      bookedIDs,
		ExcludeProvider: userID,
	})
	if err != nil {
		return nil, err
	}
	var candidates []models.Service
	for _, svc := range active {
		if _, seen := booked[svc.ID]; seen || svc.ProviderID == userID {
			continue
		}
		candidates = append(candidates, svc)
	}
	if len(candidates) == 0 {
		return []models.ServiceSuggestion{}, nil
	}

	history, err := s.serviceRepo.FindByIDs(ctx, bookedIDs)
	if err != nil {
		return nil, err
	}

	if s.generator != nil {
		suggestions, err := s.generateSuggestions(ctx, history, candidates)
		if err == nil {
			metrics.SuggestionsGeneratedTotal.Inc()
			return suggestions, nil
		}
		log.Warn().Err(err).Str("user_id", userID.Hex()).Msg("LLM suggestions failed, falling back to ratings")
	}
	return fallbackSuggestions(history, candidates), nil
}

func promptInfo(services []models.Service) []models.PromptServiceInfo {
	out := make([]models.PromptServiceInfo, 0, len(services))
	for _, svc := range services {
		out = append(out, models.PromptServiceInfo{
			ID:       svc.ID.Hex(),
			Title:    svc.Title,
			Category: svc.Category,
			Location: svc.Location,
			Price:    svc.Price,
			Rating:   svc.Rating,
		})
	}
	return out
}

func (s *assistantService) generateSuggestions(ctx context.Context, history, candidates []models.Service) ([]models.ServiceSuggestion, error) {
	historyJSON, err := json.Marshal(promptInfo(history))
	if err != nil {
		return nil, err
	}
	candidatesJSON, err := json.Marshal(promptInfo(candidates))
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`You are a travel assistant for a tourism marketplace.
The tourist previously booked these services:
%s

Pick up to %d services for them ONLY from this list of available services:
%s

Return ONLY a JSON array with no text around it. Each element must look like:
{"serviceId": "<id from the list>", "reason": "<one sentence why it fits>"}`, historyJSON, maxSuggestions, candidatesJSON)

	byID := make(map[string]models.Service, len(candidates))
	for _, svc := range candidates {
		byID[svc.ID.Hex()] = svc
	}

	for i := 0; i < suggestionRetries; i++ {
		raw, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			return nil, err
		}
		cleaned := stripCodeFence(raw)
		if cleaned == "" {
			log.Warn().Int("retry", i+1).Msg("LLM returned an empty response")
			continue
		}

		var picks []models.ServiceSuggestion
		if err := json.Unmarshal([]byte(cleaned), &picks); err != nil {
			log.Warn().Err(err).Int("retry", i+1).Str("raw_response", raw).Msg("Failed to parse LLM response as JSON")
			continue
		}

		suggestions := make([]models.ServiceSuggestion, 0, maxSuggestions)
		seen := map[string]bool{}
		for _, p := range picks {
			svc, ok := byID[p.ServiceID]
			if !ok || seen[p.ServiceID] {
				continue
			}
			seen[p.ServiceID] = true
			suggestions = append(suggestions, models.ServiceSuggestion{ServiceID: p.ServiceID, Title: svc.Title, Reason: strings.TrimSpace(p.Reason)})
			if len(suggestions) == maxSuggestions {
				break
			}
		}
		if len(suggestions) > 0 {
			return suggestions, nil
		}
		log.Warn().Int("retry", i+1).Msg("LLM suggested no known services. Retrying...")
	}
	return nil, fmt.Errorf("no usable suggestions after %d attempts", suggestionRetries)
}

// fallbackSuggestions prefers categories the tourist booked before, then rating.
func fallbackSuggestions(history, candidates []models.Service) []models.ServiceSuggestion {
	liked := map[string]bool{}
	for _, svc := range history {
		liked[svc.Category] = true
	}

	ranked := append([]models.Service(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if liked[ranked[i].Category] != liked[ranked[j].Category] {
			return liked[ranked[i].Category]
		}
		return ranked[i].Rating > ranked[j].Rating
	})

	n := len(ranked)
	if n > maxSuggestions {
		n = maxSuggestions
	}
	suggestions := make([]models.ServiceSuggestion, 0, n)
	for _, svc := range ranked[:n] {
		reason := fmt.Sprintf("Popular %s in %s", svc.Category, svc.Location)
		if liked[svc.Category] {
			reason = fmt.Sprintf("Similar to %s you booked before", svc.Category)
		}
		suggestions = append(suggestions, models.ServiceSuggestion{ServiceID: svc.ID.Hex(), Title: svc.Title, Reason: reason})
	}
	return suggestions
}
