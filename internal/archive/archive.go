// Package archive groups articles by UTC calendar month for date browsing.
package archive

import (
	"fmt"
	"sort"
	"time"

	"github.com/starford/ansuz/internal/models"
)

type yearMonth struct {
	year  int
	month time.Month
}

// Build groups metas by UTC year and month. Articles within a group are newest
// first; groups are ordered by year then month, both descending. UTC is used
// so a post dated on a month boundary never drifts into the previous month on
// a host with a negative offset.
func Build(metas []models.Meta) []models.ArchiveGroup {
	groups := make(map[yearMonth][]models.Meta)
	for _, m := range metas {
		d := m.Date.UTC()
		key := yearMonth{year: d.Year(), month: d.Month()}
		groups[key] = append(groups[key], m.Clone())
	}

	keys := make([]yearMonth, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year > keys[j].year
		}
		return keys[i].month > keys[j].month
	})

	out := make([]models.ArchiveGroup, 0, len(keys))
	for _, k := range keys {
		articles := groups[k]
		models.SortByDateDesc(articles)
		out = append(out, models.ArchiveGroup{
			YearMonth:   fmt.Sprintf("%04d-%02d", k.year, int(k.month)),
			DisplayName: fmt.Sprintf("%s %d", k.month, k.year),
			Year:        k.year,
			Month:       int(k.month),
			Count:       len(articles),
			Articles:    articles,
		})
	}
	return out
}
