package kredirect

// CompatibleWith reports whether v is within the ceiling's major.minor line.
// The patch level is not bounded.
func (v Version) CompatibleWith(ceiling Version) bool {
	if v.Major != ceiling.Major {
		return v.Major < ceiling.Major
	}
	return v.Minor <= ceiling.Minor
}

// SelectBest returns the newest candidate compatible with ceiling. Candidates
// without a version are skipped. When several candidates carry the same
// greatest version the last one wins.
func SelectBest(candidates []ReleaseRecord, ceiling Version) (ReleaseRecord, bool) {
	var (
		best  ReleaseRecord
		found bool
	)
	for _, c := range candidates {
		if c.Version == nil || !c.Version.CompatibleWith(ceiling) {
			continue
		}
		if !found || !c.Version.Less(*best.Version) {
			best = c
			found = true
		}
	}
	return best, found
}
