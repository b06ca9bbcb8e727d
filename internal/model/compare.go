package model

// Comparison lists resource-level differences between two mirror jobs of
// the same host. Resources are matched by original URL.
type Comparison struct {
	// Host is the compared origin.
	Host string `json:"host"`

	// BaseID and TargetID are the database IDs of the older and newer job.
	BaseID   int64 `json:"baseId"`
	TargetID int64 `json:"targetId"`

	// Added holds URLs captured only by the newer job.
	Added []string `json:"added"`

	// Removed holds URLs captured only by the older job.
	Removed []string `json:"removed"`

	// Changed holds URLs downloaded by both jobs with different content.
	Changed []string `json:"changed"`

	// Unchanged counts URLs present in both jobs with identical content.
	Unchanged int `json:"unchanged"`
}

// HasChanges reports whether anything differs.
func (c *Comparison) HasChanges() bool {
	return len(c.Added) > 0 || len(c.Removed) > 0 || len(c.Changed) > 0
}

// CompareReports diffs base (older) against target (newer). The order of
// Added and Changed follows target's discovery order; Removed follows base.
func CompareReports(base, target *MirrorReport) *Comparison {
	c := &Comparison{
		Host:     target.Host,
		BaseID:   base.ID,
		TargetID: target.ID,
		Added:    make([]string, 0),
		Removed:  make([]string, 0),
		Changed:  make([]string, 0),
	}

	old := make(map[string]*Entry, len(base.Entries))
	for i := range base.Entries {
		old[base.Entries[i].OriginalURL] = &base.Entries[i]
	}
	seen := make(map[string]bool, len(target.Entries))

	for i := range target.Entries {
		e := &target.Entries[i]
		seen[e.OriginalURL] = true
		prev, ok := old[e.OriginalURL]
		if !ok {
			c.Added = append(c.Added, e.OriginalURL)
			continue
		}
		if prev.Hash != "" && e.Hash != "" && prev.Hash != e.Hash {
			c.Changed = append(c.Changed, e.OriginalURL)
			continue
		}
		c.Unchanged++
	}

	for i := range base.Entries {
		if !seen[base.Entries[i].OriginalURL] {
			c.Removed = append(c.Removed, base.Entries[i].OriginalURL)
		}
	}

	return c
}
