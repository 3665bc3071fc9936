package window

import (
	"time"

	"logsentry/pkg/models"
)

// Partition is one rule's slice of a Store, addressed by group key only.
type Partition struct {
	store  *Store
	ruleID string
}

// RuleID returns the owning rule.
func (p *Partition) RuleID() string { return p.ruleID }

func (p *Partition) key(group string) Key {
	return Key{RuleID: p.ruleID, Group: group}
}

// Append adds an event to the group's bucket and reports whether it was created.
func (p *Partition) Append(group string, ev models.Event) bool {
	return p.store.Append(p.key(group), ev)
}

// EvictOlderThan drops the group's events older than cutoff.
func (p *Partition) EvictOlderThan(group string, cutoff time.Time) int {
	return p.store.EvictOlderThan(p.key(group), cutoff)
}

// Clear resets the group's bucket after it produced an alert.
func (p *Partition) Clear(group string) {
	p.store.Clear(p.key(group))
}

// Snapshot copies the group's events.
func (p *Partition) Snapshot(group string) []models.Event {
	return p.store.Snapshot(p.key(group))
}

// Len returns the group's bucket size.
func (p *Partition) Len(group string) int {
	return p.store.Len(p.key(group))
}
