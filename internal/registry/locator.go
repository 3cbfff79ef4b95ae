package registry

import (
	"fmt"
	"sort"

	"mongo-migrations/internal/domain"
)

// Locator は登録元からマイグレーションを探索する。
type Locator struct {
	// Filters は除外判定のチェーン。いずれかが除外すれば除外される。
	Filters []Filter

	sources []Source
}

// NewLocator は既定のフィルタを持つLocatorを生成する。
func NewLocator(sources ...Source) *Locator {
	return &Locator{
		Filters: DefaultFilters(),
		sources: sources,
	}
}

// LookIn は探索対象のSourceを追加する。
func (l *Locator) LookIn(sources ...Source) *Locator {
	l.sources = append(l.sources, sources...)
	return l
}

// GetAllMigrations はフィルタ適用後の全マイグレーションをバージョン昇順で返す。
func (l *Locator) GetAllMigrations() ([]domain.Migration, error) {
	var all []domain.Migration
	seen := make(map[string]string)

	for _, src := range l.sources {
		loaded, err := src.Load()
		if err != nil {
			return nil, &domain.DiscoveryError{Source: src.Name(), Err: err}
		}
		for _, m := range loaded {
			if excluded(l.Filters, m) {
				continue
			}
			key := m.Metadata().Version.String()
			if prev, ok := seen[key]; ok {
				return nil, &domain.DiscoveryError{
					Source: src.Name(),
					Err:    fmt.Errorf("%w: %s (already registered in %s)", domain.ErrDuplicateVersion, key, prev),
				}
			}
			seen[key] = src.Name()
			all = append(all, m)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Metadata().Version.Less(all[j].Metadata().Version)
	})
	return all, nil
}

// GetMigrationsAfter はafterより新しいマイグレーションを昇順で返す。
// afterがnilの場合は全件を返す。
func (l *Locator) GetMigrationsAfter(after *domain.Version) ([]domain.Migration, error) {
	all, err := l.GetAllMigrations()
	if err != nil {
		return nil, err
	}
	if after == nil {
		return all, nil
	}

	var result []domain.Migration
	for _, m := range all {
		if m.Metadata().Version.Compare(*after) > 0 {
			result = append(result, m)
		}
	}
	return result, nil
}

// LatestVersion は最新のマイグレーションのバージョンを返す。
// マイグレーションがない場合はDefaultVersionを返す。
func (l *Locator) LatestVersion() (domain.Version, error) {
	all, err := l.GetAllMigrations()
	if err != nil {
		return domain.DefaultVersion, err
	}
	if len(all) == 0 {
		return domain.DefaultVersion, nil
	}
	return all[len(all)-1].Metadata().Version, nil
}
