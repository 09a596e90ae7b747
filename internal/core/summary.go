package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary is the aggregate of one bucket.
type Summary struct {
	Bucket    Bucket
	Reference time.Time
	Start     time.Time // zero when Bucket is unknown
	End       time.Time
	Count     int
	Total     decimal.Decimal
	Payments  []Payment
}

// SumAmounts adds the payment amounts; missing amounts count as zero.
func SumAmounts(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(amountOrZero(p.TotalAmount))
	}
	return total
}

func Count(payments []Payment) int {
	return len(payments)
}

// Summarize filters payments to the bucket around ref and aggregates them.
func Summarize(payments []Payment, bucket Bucket, ref time.Time, loc *time.Location) Summary {
	filtered := FilterByBucket(payments, bucket, ref, loc)
	start, end, _ := BucketRange(bucket, ref, loc)
	return Summary{
		Bucket:    bucket,
		Reference: ref,
		Start:     start,
		End:       end,
		Count:     Count(filtered),
		Total:     SumAmounts(filtered),
		Payments:  filtered,
	}
}
