package registry

import "mongo-migrations/internal/domain"

// Filter は探索結果から除外するマイグレーションを判定する。
type Filter interface {
	Exclude(m domain.Migration) bool
}

// FilterFunc は関数をFilterとして扱うアダプタ。
type FilterFunc func(m domain.Migration) bool

// Exclude はf(m)を返す。
func (f FilterFunc) Exclude(m domain.Migration) bool {
	return f(m)
}

// ExcludeExperimental は実験的なマイグレーションを除外する。
type ExcludeExperimental struct{}

// Exclude はmが実験的な場合にtrueを返す。nilは除外しない。
func (ExcludeExperimental) Exclude(m domain.Migration) bool {
	return domain.IsExperimental(m)
}

// DefaultFilters は既定のフィルタチェーンを返す。
func DefaultFilters() []Filter {
	return []Filter{ExcludeExperimental{}}
}

func excluded(filters []Filter, m domain.Migration) bool {
	for _, f := range filters {
		if f != nil && f.Exclude(m) {
			return true
		}
	}
	return false
}
