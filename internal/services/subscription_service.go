package services

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/tributaria/internal/domain"
	"github.com/tbourn/tributaria/internal/repo"
)

// DefaultPlans are shown when the plans table is empty or unreadable, and
// seeded on first migration.
var DefaultPlans = []domain.SubscriptionPlan{
	{
		Name:        "Básico",
		Price:       47,
		Description: "Perfeito para começar a usar a tributarIA",
		Features: []string{
			"Perguntas ilimitadas",
			"Histórico de conversas salvo",
			"Atualizações contínuas",
			"Suporte por email",
		},
	},
	{
		Name:        "Premium",
		Price:       97,
		Description: "Acesso completo a todos os recursos avançados",
		Features: []string{
			"Tudo do plano básico",
			"Biblioteca de referências oficiais",
			"Análises comparativas fiscais",
			"Simulações práticas de cenários",
			"Alertas de mudanças na legislação",
			"Suporte prioritário",
		},
	},
}

// SubscriptionService exposes read-only plan and subscription data.
type SubscriptionService struct {
	DB *gorm.DB
}

// Plans returns the plans ordered by price. Read failures and an empty table
// both fall back to DefaultPlans so the plans page always renders.
func (s *SubscriptionService) Plans(ctx context.Context) []domain.SubscriptionPlan {
	plans, err := repo.ListPlans(ctx, s.DB)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("list plans failed; serving defaults")
	}
	if err != nil || len(plans) == 0 {
		out := make([]domain.SubscriptionPlan, len(DefaultPlans))
		copy(out, DefaultPlans)
		return out
	}
	return plans
}

// Current returns the active subscription of userID, or nil when the user
// has none.
func (s *SubscriptionService) Current(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := repo.CurrentSubscription(ctx, s.DB, userID)
	if err != nil {
		err = storeErr("current_subscription", err)
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// SeedDefaults inserts DefaultPlans, leaving existing plans untouched.
func (s *SubscriptionService) SeedDefaults(ctx context.Context) error {
	return repo.SeedPlans(ctx, s.DB, DefaultPlans)
}
