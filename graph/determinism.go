package graph

// lcgModulus is the modulus of the linear-congruential generator used for
// random switch conditions.
const lcgModulus = 233280

// SeededRandom returns a deterministic value in [0, 1) for seed and salt:
//
//	(seed*9301 + 49297 + salt*233) mod 233280 / 233280.0
//
// The modulo is floored (never negative) and computed without overflow for
// any int64 inputs, so results are bit-identical across platforms.
func SeededRandom(seed, salt int64) float64 {
	v := floorMod(floorMod(seed, lcgModulus)*9301+49297+floorMod(salt, lcgModulus)*233, lcgModulus)
	return float64(v) / 233280.0
}

// BranchSalt derives the salt for a random branch condition: the sum of the
// code points of nodeID followed by branchID, plus the bar index.
func BranchSalt(nodeID, branchID string, barIndex int) int64 {
	var sum int64
	for _, r := range nodeID + branchID {
		sum += int64(r)
	}
	return sum + int64(barIndex)
}

func floorMod(x, m int64) int64 {
	r := x % m
	if r < 0 {
		r += m
	}
	return r
}
