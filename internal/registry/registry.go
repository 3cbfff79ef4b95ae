// Package registry は登録されたマイグレーションの探索と絞り込みを提供する。
package registry

import (
	"errors"
	"fmt"
	"sync"

	"mongo-migrations/internal/domain"
)

// Factory はマイグレーションを1つ生成する。
type Factory func() (domain.Migration, error)

// Source はマイグレーションの供給元。
type Source interface {
	Name() string
	Load() ([]domain.Migration, error)
}

// Registry はFactoryを登録順に保持するSource。
type Registry struct {
	name string

	mu        sync.Mutex
	factories []Factory
}

// New は新しいRegistryを生成する。
func New(name string) *Registry {
	return &Registry{name: name}
}

// Name はRegistryの名前を返す。
func (r *Registry) Name() string {
	return r.name
}

// Register はFactoryを追加する。
func (r *Registry) Register(factories ...Factory) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = append(r.factories, factories...)
	return r
}

// Add は生成済みのマイグレーションを登録する。
func (r *Registry) Add(migrations ...domain.Migration) *Registry {
	for _, m := range migrations {
		m := m
		r.Register(func() (domain.Migration, error) { return m, nil })
	}
	return r
}

// Load は登録された全Factoryを呼び出してマイグレーションを生成する。
// 1つでも失敗した場合は部分的な結果を返さない。
func (r *Registry) Load() ([]domain.Migration, error) {
	r.mu.Lock()
	factories := make([]Factory, len(r.factories))
	copy(factories, r.factories)
	r.mu.Unlock()

	migrations := make([]domain.Migration, 0, len(factories))
	for i, factory := range factories {
		if factory == nil {
			return nil, fmt.Errorf("factory #%d is nil", i)
		}
		m, err := factory()
		if err != nil {
			return nil, fmt.Errorf("factory #%d: %w", i, err)
		}
		if m == nil {
			return nil, errors.New("factory returned nil migration")
		}
		migrations = append(migrations, m)
	}
	return migrations, nil
}
