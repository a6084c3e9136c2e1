package notifier

import (
	"context"

	"github.com/semmidev/custos/internal/domain"
)

// Nop is used when no notification channel is enabled.
type Nop struct{}

func (Nop) Notify(context.Context, domain.CycleEvent) error {
	return nil
}
