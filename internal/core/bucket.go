package core

import (
	"strings"
	"time"
)

// Bucket is a calendar-aligned reporting window.
type Bucket string

const (
	BucketDaily   Bucket = "daily"
	BucketWeekly  Bucket = "weekly"
	BucketMonthly Bucket = "monthly"
	BucketYearly  Bucket = "yearly"
)

// Buckets lists the known buckets from narrowest to widest.
var Buckets = []Bucket{BucketDaily, BucketWeekly, BucketMonthly, BucketYearly}

// ParseBucket normalizes case and spacing. The result may still be invalid.
func ParseBucket(s string) Bucket {
	return Bucket(strings.ToLower(strings.TrimSpace(s)))
}

func (b Bucket) Valid() bool {
	switch b {
	case BucketDaily, BucketWeekly, BucketMonthly, BucketYearly:
		return true
	}
	return false
}

// BucketBounds returns the half-open window [start, next) of bucket around
// ref, computed on the calendar of loc. ok is false for an unknown bucket.
func BucketBounds(bucket Bucket, ref time.Time, loc *time.Location) (start, next time.Time, ok bool) {
	if loc == nil {
		loc = DefaultLocation()
	}
	ref = ref.In(loc)
	y, m, d := ref.Date()

	switch bucket {
	case BucketDaily:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 0, 1)
	case BucketWeekly:
		start = time.Date(y, m, d-int(ref.Weekday()), 0, 0, 0, 0, loc)
		next = start.AddDate(0, 0, 7)
	case BucketMonthly:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 1, 0)
	case BucketYearly:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(1, 0, 0)
	default:
		return time.Time{}, time.Time{}, false
	}
	return start, next, true
}

// BucketRange is the display form of BucketBounds: the end is the last
// millisecond of the window. Membership tests use BucketBounds.
func BucketRange(bucket Bucket, ref time.Time, loc *time.Location) (start, end time.Time, ok bool) {
	start, next, ok := BucketBounds(bucket, ref, loc)
	if !ok {
		return start, next, false
	}
	return start, next.Add(-time.Millisecond), true
}

// FilterByBucket keeps the payments whose creation time falls in the bucket
// around ref, preserving order. An unknown bucket filters nothing.
func FilterByBucket(payments []Payment, bucket Bucket, ref time.Time, loc *time.Location) []Payment {
	start, next, ok := BucketBounds(bucket, ref, loc)
	if !ok {
		return payments
	}
	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		if inRange(p.CreatedAt, start, next) {
			out = append(out, p)
		}
	}
	return out
}

func inRange(t, start, next time.Time) bool {
	if t.IsZero() {
		return false
	}
	return !t.Before(start) && t.Before(next)
}
