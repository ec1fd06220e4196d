package ingest

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// SplitGap splits the blocks after checkpoint up to and including target
// into chunks of at most chunkSize blocks. An empty gap yields no chunks.
func SplitGap(checkpoint, target, chunkSize uint64) ([]BlockRange, error) {
	if chunkSize == 0 {
		return nil, fmt.Errorf("chunk size must be greater than zero")
	}
	if target <= checkpoint {
		return nil, nil
	}

	ranges := make([]BlockRange, 0)
	start := checkpoint + 1
	for start <= target {
		remaining := target - start + 1
		var end uint64
		if remaining <= chunkSize {
			end = target
		} else {
			end = start + chunkSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == target {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
