package engine

// PartRange is the fixed order-number span of one TOEIC part.
type PartRange struct {
	Part int `json:"part"`
	Low  int `json:"low"`
	High int `json:"high"`
}

// PartRanges are the seven TOEIC part boundaries of a full 200-question test.
var PartRanges = [7]PartRange{
	{Part: 1, Low: 1, High: 6},
	{Part: 2, Low: 7, High: 31},
	{Part: 3, Low: 32, High: 70},
	{Part: 4, Low: 71, High: 100},
	{Part: 5, Low: 101, High: 130},
	{Part: 6, Low: 131, High: 146},
	{Part: 7, Low: 147, High: 200},
}

// LastListeningPart is the highest part number played against the audio track.
const LastListeningPart = 4

// IsListeningPart reports whether part belongs to the listening section.
func IsListeningPart(part int) bool {
	return part >= 1 && part <= LastListeningPart
}

// RangeForPart returns the order-number span of part.
func RangeForPart(part int) (PartRange, bool) {
	if part < 1 || part > len(PartRanges) {
		return PartRange{}, false
	}
	return PartRanges[part-1], true
}
