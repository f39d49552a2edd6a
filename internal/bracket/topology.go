package bracket

import "math/bits"

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func BracketSize(count int) int {
	if count <= 0 {
		return 0
	}
	return 1 << bits.Len(uint(count-1))
}

// RoundCount is log2 of a bracket size.
func RoundCount(size int) int {
	if size <= 1 {
		return 0
	}
	return bits.Len(uint(size)) - 1
}

func MatchesInRound(size, round int) int {
	if round < 1 || round > RoundCount(size) {
		return 0
	}
	return size >> round
}

type Coord struct {
	Round    int
	Position int
}

// Downstream returns the match a winner of (round, position) moves into.
func Downstream(round, position int) (int, int) {
	return round + 1, position / 2
}

// DownstreamSlot: even positions feed slot 1, odd positions slot 2.
func DownstreamSlot(position int) Slot {
	if position%2 == 0 {
		return Slot1
	}
	return Slot2
}

// Feeders returns the two matches whose winners fill (round, position).
// Round one has no feeders.
func Feeders(round, position int) (Coord, Coord, bool) {
	if round <= 1 {
		return Coord{}, Coord{}, false
	}
	return Coord{round - 1, 2 * position}, Coord{round - 1, 2*position + 1}, true
}

// SeedPairs returns zero-based seed indexes for each round-one match, folding
// the draw so seed 1 meets seed S, seed 2 meets seed S-1 and the top seeds
// land in opposite halves. Every pair sums to size-1.
func SeedPairs(size int) [][2]int {
	if size < 2 {
		return [][2]int{}
	}

	order := []int{0}
	for len(order) < size {
		next := make([]int, 0, len(order)*2)
		count := len(order) * 2

		for _, seed := range order {
			next = append(next, seed, (count-1)-seed)
		}
		order = next
	}

	pairs := make([][2]int, 0, size/2)
	for i := 0; i < len(order); i += 2 {
		pairs = append(pairs, [2]int{order[i], order[i+1]})
	}
	return pairs
}
