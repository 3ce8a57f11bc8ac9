package service

import (
	"context"
	"strings"

	"github.com/spec-kit/tastyhub-service/internal/domain"
	"github.com/spec-kit/tastyhub-service/internal/repository"
)

// TagService resolves and lazily creates followable tags.
type TagService struct {
	tags repository.TagRepository
}

// NewTagService constructs the service.
func NewTagService(tags repository.TagRepository) *TagService {
	return &TagService{tags: tags}
}

// FindAllByID resolves existing tags; unknown ids are simply absent
// from the result.
func (s *TagService) FindAllByID(ctx context.Context, ids []int64) ([]domain.Tag, error) {
	return s.tags.FindAllByID(ctx, ids)
}

// EnsureTagsExist is an idempotent by-name upsert: existing names are
// fetched in one batch and only the missing ones are created. The
// returned set covers every requested name.
func (s *TagService) EnsureTagsExist(ctx context.Context, names []string) ([]domain.Tag, error) {
	cleaned := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		cleaned = append(cleaned, name)
	}
	if len(cleaned) == 0 {
		return []domain.Tag{}, nil
	}

	existing, err := s.tags.FindByNameIn(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	existingNames := make(map[string]struct{}, len(existing))
	for _, tag := range existing {
		existingNames[tag.Name] = struct{}{}
	}

	missing := make([]domain.Tag, 0, len(cleaned))
	for _, name := range cleaned {
		if _, ok := existingNames[name]; !ok {
			missing = append(missing, domain.Tag{Name: name})
		}
	}

	if len(missing) > 0 {
		created, err := s.tags.SaveAll(ctx, missing)
		if err != nil {
			return nil, err
		}
		existing = append(existing, created...)
	}
	return existing, nil
}
