package models

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// maxFileStem keeps alert file names under common 255-byte limits.
const maxFileStem = 200

// Alert is emitted when a detection rule's condition is satisfied.
type Alert struct {
	ID          string    `json:"id"`
	RuleID      string    `json:"rule_id"`
	GroupKey    string    `json:"group_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Events      []Event   `json:"events"`
	Remediation string    `json:"remediation,omitempty"`
}

// FileName is the file name used when an alert is persisted on its own.
// The id embeds the group key taken from log data, so every byte outside
// [A-Za-z0-9._@-] becomes '_' and the result never contains a path
// separator. Overlong ids are cut and suffixed with a hash of the full id.
func (a *Alert) FileName() string {
	stem := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_', r == '@':
			return r
		}
		return '_'
	}, a.ID)
	if strings.Trim(stem, ".") == "" {
		stem = "alert" + stem
	}
	if len(stem) > maxFileStem {
		h := fnv.New64a()
		h.Write([]byte(a.ID))
		stem = fmt.Sprintf("%s_%016x", stem[:maxFileStem-17], h.Sum64())
	}
	return stem + ".json"
}
