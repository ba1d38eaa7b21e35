package cmd

import (
	"github.com/zhulik/pal"

	"skyreach/internal/core"
	"skyreach/internal/limiter"
	"skyreach/internal/notify"
	"skyreach/internal/persistence"
	"skyreach/internal/persistence/approvals"
	"skyreach/internal/persistence/responses"
	"skyreach/internal/persistence/seen"
)

// storage provides the database and all repositories on top of it.
func storage() pal.ServiceDef {
	return pal.ProvideList(
		pal.Provide[core.DB](&persistence.DB{}),
		pal.Provide[core.SeenStore](&seen.Repository{}),
		pal.Provide[core.ResponseLog](&responses.Repository{}),
		pal.Provide[core.ApprovalRepository](&approvals.Repository{}),
	)
}

// acting provides the services shared by everything that executes
// actions: the rate limiter and the Slack notifier.
func acting() pal.ServiceDef {
	return pal.ProvideList(
		pal.Provide[core.RateLimiter](&limiter.Limiter{}),
		pal.Provide[core.Notifier](&notify.Slack{}),
	)
}
