package generator

import "strings"

// Partition splits numbers into consecutive batches of at most size
// entries, preserving order. The last batch may be smaller. A size below 1
// is treated as 1.
func Partition(numbers []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	batches := make([][]string, 0, BatchCount(len(numbers), size))
	for start := 0; start < len(numbers); start += size {
		end := min(start+size, len(numbers))
		batches = append(batches, numbers[start:end:end])
	}
	return batches
}

// BatchCount returns ceil(n/size).
func BatchCount(n, size int) int {
	if size < 1 {
		size = 1
	}
	return (n + size - 1) / size
}

// JoinBatch joins the numbers of one batch into the {NUMBERS} field.
func JoinBatch(batch []string, delimiter string) string {
	return strings.Join(batch, delimiter)
}
