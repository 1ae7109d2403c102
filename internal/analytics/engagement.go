package analytics

import (
	"sort"
	"time"

	"rugguard/internal/store/journal"
)

// HourlyTiers buckets journal records per UTC hour, counting each verdict tier.
func HourlyTiers(records []journal.Record) map[time.Time]map[string]int {
	buckets := make(map[time.Time]map[string]int)
	for _, r := range records {
		ts := r.TS.UTC()
		key := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, time.UTC)
		if _, ok := buckets[key]; !ok {
			buckets[key] = make(map[string]int)
		}
		buckets[key][r.Tier]++
	}
	return buckets
}

// SortedBucketKeys returns sorted hour keys.
func SortedBucketKeys(m map[time.Time]map[string]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// SortedTiers returns the tier names of one bucket in a stable order.
func SortedTiers(bucket map[string]int) []string {
	tiers := make([]string, 0, len(bucket))
	for t := range bucket {
		tiers = append(tiers, t)
	}
	sort.Strings(tiers)
	return tiers
}
