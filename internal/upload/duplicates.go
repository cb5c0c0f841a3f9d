package upload

// FilterDuplicates splits records into those to load and those whose entity
// equals an earlier one. The first occurrence wins; each duplicate is
// reported against its own row, naming the row it repeats.
func FilterDuplicates(records []*Record, run *Run) (accepted, duplicates []*Record) {
	firstLine := make(map[string]int, len(records))
	accepted = make([]*Record, 0, len(records))

	for _, rec := range records {
		key := rec.Entity.Fingerprint()
		if line, seen := firstLine[key]; seen {
			run.Result.AddError(rec.Line(), "duplicate of row %d", line)
			run.Result.countDuplicate()
			duplicates = append(duplicates, rec)
			continue
		}
		firstLine[key] = rec.Line()
		accepted = append(accepted, rec)
	}
	return accepted, duplicates
}
