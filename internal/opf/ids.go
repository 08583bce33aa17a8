package opf

import "fmt"

// AllocateIDs returns count manifest ids derived from baseID: baseID itself,
// then "<baseID>_-1" through "<baseID>_-<count-1>". A candidate that clashes
// with existingIDs or an id generated earlier in the call gets "_<n>"
// appended, with n counting up from 1 until it is unique. The result depends
// only on the arguments.
func AllocateIDs(baseID string, count int, existingIDs []string) []string {
	if count <= 0 {
		return nil
	}

	taken := make(map[string]bool, len(existingIDs)+count)
	for _, id := range existingIDs {
		taken[id] = true
	}

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := baseID
		if i > 0 {
			id = fmt.Sprintf("%s_-%d", baseID, i)
		}

		candidate := id
		for n := 1; taken[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", id, n)
		}

		ids = append(ids, candidate)
		taken[candidate] = true
	}
	return ids
}
