package cache

import (
	"context"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Noop — кэш, который ничего не хранит. Используется, когда Redis не настроен.
type Noop struct{}

func (Noop) Get(context.Context, string) (domain.Product, bool, error) {
	return domain.Product{}, false, nil
}

func (Noop) Set(context.Context, domain.Product) error {
	return nil
}

func (Noop) Invalidate(context.Context, ...string) error {
	return nil
}

var _ domain.ProductCache = Noop{}
