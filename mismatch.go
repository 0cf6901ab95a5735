package asyncstep

import (
	"fmt"
	"strings"
	"time"
)

// MismatchDescriber renders why a value did not match a criterion.
type MismatchDescriber interface {
	DescribeMismatch() string
}

// CriterionMismatch is reported by a single failed condition.
type CriterionMismatch struct {
	Criterion string
	Value     any
}

func (m *CriterionMismatch) DescribeMismatch() string {
	return fmt.Sprintf("Not expected: %s. Value: %s", m.Criterion, DescribeValue(m.Value))
}

// AnyMismatch enumerates every alternative that failed to match.
type AnyMismatch struct {
	Mismatches []MismatchDescriber
}

func (m *AnyMismatch) DescribeMismatch() string {
	described := make([]string, 0, len(m.Mismatches))
	for _, mismatch := range m.Mismatches {
		described = append(described, mismatch.DescribeMismatch())
	}
	return fmt.Sprintf("None of the alternatives matched: [%s]", strings.Join(described, "; "))
}

// PropertyValueMismatch describes a mismatch of one property of a bigger value.
type PropertyValueMismatch struct {
	Property string
	Value    any
	Mismatch MismatchDescriber
}

func (m *PropertyValueMismatch) DescribeMismatch() string {
	return fmt.Sprintf("%s: %s. %s.", m.Property, DescribeValue(m.Value), m.Mismatch.DescribeMismatch())
}

// ItemMismatch describes a mismatch of an element of a slice or array.
type ItemMismatch struct {
	Index    int
	Item     any
	Mismatch MismatchDescriber
}

func (m *ItemMismatch) DescribeMismatch() string {
	return fmt.Sprintf("Index: %d. Item: %s. %s", m.Index, DescribeValue(m.Item), m.Mismatch.DescribeMismatch())
}

type EmptyMismatch struct{}

func (EmptyMismatch) DescribeMismatch() string {
	return "Result is empty"
}

// ErrorMismatch is recorded when a poll attempt failed with a transient error.
type ErrorMismatch struct {
	Err error
}

func (m *ErrorMismatch) DescribeMismatch() string {
	return fmt.Sprintf("Attempt failed: %v", m.Err)
}

// MismatchWithTime decorates a mismatch observed while waiting for a match.
type MismatchWithTime struct {
	Waited   time.Duration
	Mismatch MismatchDescriber
}

func (m *MismatchWithTime) DescribeMismatch() string {
	return fmt.Sprintf("%s (waited for %s)", m.Mismatch.DescribeMismatch(), m.Waited.Truncate(time.Millisecond))
}
