package hand

import (
	"sort"

	"ChainHoldem/internal/game/table"
)

// 牌型等级：数值越大越强
const (
	HighCard      = 0
	OnePair       = 1
	TwoPair       = 2
	ThreeOfAKind  = 3
	Straight      = 4
	Flush         = 5
	FullHouse     = 6
	FourOfAKind   = 7
	StraightFlush = 8
)

var categoryNames = map[int]string{
	HighCard:      "high_card",
	OnePair:       "one_pair",
	TwoPair:       "two_pair",
	ThreeOfAKind:  "three_of_a_kind",
	Straight:      "straight",
	Flush:         "flush",
	FullHouse:     "full_house",
	FourOfAKind:   "four_of_a_kind",
	StraightFlush: "straight_flush",
}

func CategoryName(c int) string { return categoryNames[c] }

// Result 七张牌的最优评估：牌型 + 比牌键序列 + 选中的 5 张
type Result struct {
	Category int          `json:"category"`
	Keys     []int        `json:"keys"`
	Best     []table.Card `json:"best"`
}

// Compare 返回 >0 表示 a 胜，<0 表示 b 胜，0 为平分底池的真平局。
// 先比牌型，同牌型逐位比较比牌键，首个差异定胜负。
func Compare(a, b Result) int {
	if a.Category != b.Category {
		return a.Category - b.Category
	}
	for i := 0; i < len(a.Keys) && i < len(b.Keys); i++ {
		if a.Keys[i] != b.Keys[i] {
			return a.Keys[i] - b.Keys[i]
		}
	}
	return 0
}

// Evaluate7 枚举 C(7,5)=21 个五张子集，取 (牌型, 比牌键) 字典序最优者。
// 输入固定则输出固定，无任何随机性。
func Evaluate7(cards []table.Card) Result {
	best := Result{Category: -1}
	var five [5]table.Card
	for a := 0; a < 7; a++ {
		for b := a + 1; b < 7; b++ {
			for c := b + 1; c < 7; c++ {
				for d := c + 1; d < 7; d++ {
					for e := d + 1; e < 7; e++ {
						five[0], five[1], five[2], five[3], five[4] =
							cards[a], cards[b], cards[c], cards[d], cards[e]
						cat, keys := eval5(five)
						if beats(cat, keys, best) {
							best = Result{
								Category: cat,
								Keys:     keys,
								Best:     append([]table.Card(nil), five[:]...),
							}
						}
					}
				}
			}
		}
	}
	return best
}

func beats(cat int, keys []int, cur Result) bool {
	if cat != cur.Category {
		return cat > cur.Category
	}
	for i := 0; i < len(keys) && i < len(cur.Keys); i++ {
		if keys[i] != cur.Keys[i] {
			return keys[i] > cur.Keys[i]
		}
	}
	return false
}

// eval5 五张牌定级，返回 (牌型, 比牌键)。
// 比牌键按各牌型的规则排序：三条 = {三条点, 踢脚降序}，
// 两对 = {大对, 小对, 踢脚}，以此类推。
func eval5(cards [5]table.Card) (int, []int) {
	counts := map[int]int{}
	suits := map[int]int{}
	ranks := make([]int, 0, 5)
	for _, c := range cards {
		counts[c.Rank]++
		suits[c.Suit]++
		ranks = append(ranks, c.Rank)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))

	isFlush := false
	for _, v := range suits {
		if v == 5 {
			isFlush = true
			break
		}
	}
	isStraight, straightHigh := straightHigh(ranks)

	if isFlush && isStraight {
		return StraightFlush, []int{straightHigh}
	}

	type rc struct {
		rank  int
		count int
	}
	groups := make([]rc, 0, len(counts))
	for r, c := range counts {
		groups = append(groups, rc{rank: r, count: c})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	switch {
	case groups[0].count == 4:
		return FourOfAKind, []int{groups[0].rank, highestExcluding(ranks, groups[0].rank)}
	case groups[0].count == 3 && groups[1].count == 2:
		return FullHouse, []int{groups[0].rank, groups[1].rank}
	case isFlush:
		return Flush, ranks
	case isStraight:
		return Straight, []int{straightHigh}
	case groups[0].count == 3:
		return ThreeOfAKind, append([]int{groups[0].rank}, kickersExcluding(ranks, groups[0].rank)...)
	case groups[0].count == 2 && groups[1].count == 2:
		hi, lo := groups[0].rank, groups[1].rank
		return TwoPair, []int{hi, lo, highestExcluding(ranks, hi, lo)}
	case groups[0].count == 2:
		return OnePair, append([]int{groups[0].rank}, kickersExcluding(ranks, groups[0].rank)...)
	default:
		return HighCard, ranks
	}
}

// straightHigh 判顺子并给出最高点。
// A-5-4-3-2 的轮子（wheel）算成立，但比牌只按 5 计，Ace 仅在此处当 1 用。
func straightHigh(ranks []int) (bool, int) {
	unique := ranks[:0:0]
	seen := map[int]bool{}
	for _, r := range ranks {
		if !seen[r] {
			seen[r] = true
			unique = append(unique, r)
		}
	}
	if len(unique) < 5 {
		return false, 0
	}
	sort.Sort(sort.Reverse(sort.IntSlice(unique)))
	if unique[0]-unique[4] == 4 {
		return true, unique[0]
	}
	// wheel: A,5,4,3,2
	if unique[0] == 14 && unique[1] == 5 && unique[2] == 4 && unique[3] == 3 && unique[4] == 2 {
		return true, 5
	}
	return false, 0
}

func highestExcluding(ranks []int, exclude ...int) int {
	for _, r := range ranks {
		skip := false
		for _, e := range exclude {
			if r == e {
				skip = true
				break
			}
		}
		if !skip {
			return r
		}
	}
	return 0
}

func kickersExcluding(ranks []int, exclude int) []int {
	out := make([]int, 0, 3)
	for _, r := range ranks {
		if r != exclude {
			out = append(out, r)
		}
	}
	return out
}
