package session

import "context"

// Navigator выполняет переход интерфейса на другой адрес.
type Navigator interface {
	Navigate(ctx context.Context, location string)
}

// NavigatorFunc адаптирует функцию к Navigator.
type NavigatorFunc func(ctx context.Context, location string)

// Navigate вызывает f.
func (f NavigatorFunc) Navigate(ctx context.Context, location string) {
	f(ctx, location)
}

type noopNavigator struct{}

func (noopNavigator) Navigate(context.Context, string) {}
