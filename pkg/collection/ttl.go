package collection

import (
	"fmt"
	"time"

	"github.com/kvindex/knndb/pkg/domain"
)

// SweepExpired walks every segment, collecting ids whose "&ttl" has
// passed now, removes them, and flushes the affected segments.
func (c *Collection) SweepExpired(now time.Time) (int, error) {
	segs := c.Segments()
	removed := 0
	for _, s := range segs {
		var expired []uint64
		err := s.ForEach(func(doc domain.Document) error {
			ttl, ok := doc.TTL()
			if !ok || ttl > now.Unix() {
				return nil
			}
			id, ok := doc.ID()
			if !ok {
				return nil
			}
			expired = append(expired, id)
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("collection %s: ttl sweep: %w", c.name, err)
		}
		if len(expired) == 0 {
			continue
		}
		for _, id := range expired {
			if s.Remove(id) {
				removed++
			}
		}
		if err := s.Save(); err != nil {
			return removed, fmt.Errorf("collection %s: ttl sweep save: %w", c.name, err)
		}
	}
	return removed, nil
}
