package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TemplateMatchThreshold is the minimum score for a template to be considered a match.
const TemplateMatchThreshold = 0.7

// MappingTemplate is a saved field mapping for files with a known header set.
type MappingTemplate struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Mapping   FieldMapping `json:"mapping"`
	Headers   []string     `json:"headers"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// TemplateMatch is a template scored against a file's headers.
type TemplateMatch struct {
	Template   MappingTemplate `json:"template"`
	MatchScore float64         `json:"matchScore"`
}

// TemplateStore persists mapping templates. GetTemplate and DeleteTemplate
// return an error wrapping ErrTemplateNotFound for unknown IDs.
type TemplateStore interface {
	SaveTemplate(ctx context.Context, t *MappingTemplate) error
	GetTemplate(ctx context.Context, id string) (*MappingTemplate, error)
	ListTemplates(ctx context.Context) ([]MappingTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// CreateTemplate validates and saves a new mapping template.
func (s *Service) CreateTemplate(ctx context.Context, name string, mapping FieldMapping, headers []string) (*MappingTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("required field: template name")
	}
	if err := ValidateMapping(mapping, headers); err != nil {
		return nil, err
	}

	existing, err := s.templates.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	for _, t := range existing {
		if strings.EqualFold(t.Name, name) {
			return nil, fmt.Errorf("template %q violates unique name", name)
		}
	}

	now := s.cfg.Clock()
	t := &MappingTemplate{
		ID:        uuid.New().String(),
		Name:      name,
		Mapping:   mapping,
		Headers:   headers,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.templates.SaveTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	s.logAudit(ctx, AuditEntry{Action: ActionTemplateCreate, TemplateID: t.ID, Reason: t.Name})
	return t, nil
}

// Template returns one template by ID.
func (s *Service) Template(ctx context.Context, id string) (*MappingTemplate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid template ID: %w", ErrTemplateNotFound)
	}
	return s.templates.GetTemplate(ctx, id)
}

// Templates returns all templates sorted by name.
func (s *Service) Templates(ctx context.Context) ([]MappingTemplate, error) {
	templates, err := s.templates.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	sort.Slice(templates, func(i, j int) bool {
		return strings.ToLower(templates[i].Name) < strings.ToLower(templates[j].Name)
	})
	return templates, nil
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid template ID: %w", ErrTemplateNotFound)
	}
	if err := s.templates.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, AuditEntry{Action: ActionTemplateDelete, TemplateID: id})
	return nil
}

// MatchTemplates returns templates whose headers cover at least
// TemplateMatchThreshold of the given headers, best match first.
func (s *Service) MatchTemplates(ctx context.Context, headers []string) ([]TemplateMatch, error) {
	templates, err := s.Templates(ctx)
	if err != nil {
		return nil, err
	}
	return MatchTemplates(templates, headers), nil
}

// MatchTemplates scores templates against headers. The score is the share of
// a template's headers present in headers, compared case-insensitively.
func MatchTemplates(templates []MappingTemplate, headers []string) []TemplateMatch {
	var matches []TemplateMatch
	for _, t := range templates {
		score := matchTemplateHeaders(headers, t.Headers)
		if score >= TemplateMatchThreshold {
			matches = append(matches, TemplateMatch{Template: t, MatchScore: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches
}

// matchTemplateHeaders calculates how well file headers match template headers.
func matchTemplateHeaders(fileHeaders, templateHeaders []string) float64 {
	if len(templateHeaders) == 0 {
		return 0
	}

	fileSet := make(map[string]bool, len(fileHeaders))
	for _, h := range fileHeaders {
		fileSet[normalizeHeader(h)] = true
	}

	matched := 0
	for _, h := range templateHeaders {
		if fileSet[normalizeHeader(h)] {
			matched++
		}
	}
	return float64(matched) / float64(len(templateHeaders))
}

// normalizeHeader lower-cases h and folds '_' and '-' to spaces.
func normalizeHeader(h string) string {
	h = strings.ToLower(CleanCell(h))
	h = strings.NewReplacer("_", " ", "-", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

// AutoMap suggests a mapping from header names. A header matches a field
// when its normalized text equals the field name, its label or one of its
// aliases. Each header is used at most once, in Fields order.
func AutoMap(headers []string) FieldMapping {
	mapping := make(FieldMapping)
	used := make(map[int]bool, len(headers))

	for _, info := range Fields {
		candidates := []string{normalizeHeader(string(info.Field)), normalizeHeader(info.Label)}
		for _, a := range info.Aliases {
			candidates = append(candidates, normalizeHeader(a))
		}

		for i, h := range headers {
			if used[i] {
				continue
			}
			nh := normalizeHeader(h)
			if nh == "" {
				continue
			}
			if containsString(candidates, nh) {
				mapping[info.Field] = h
				used[i] = true
				break
			}
		}
	}
	return mapping
}

// ValidateMapping checks that every mapped field is canonical and, when
// headers are given, that every mapped column is one of them. Unknown fields
// are reported before an empty mapping, and checks run in a fixed order so
// the same mapping always fails the same way.
func ValidateMapping(mapping FieldMapping, headers []string) error {
	var unknown []string
	for field := range mapping {
		if !IsField(string(field)) {
			unknown = append(unknown, string(field))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("invalid enum: unknown field %q", unknown[0])
	}

	mapped := mapping.Mapped()
	if len(mapped) == 0 {
		return fmt.Errorf("required field: mapping has no mapped fields")
	}
	if len(headers) == 0 {
		return nil
	}

	headerSet := make(map[string]bool, len(headers))
	for _, h := range headers {
		headerSet[h] = true
	}
	for _, field := range mapped {
		col, _ := mapping.Column(field)
		if !headerSet[col] {
			return fmt.Errorf("column not found: %q mapped to %s", col, field)
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
