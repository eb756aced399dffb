package processors

import "strconv"

// CardNetwork is the ordinal encoding of a card scheme derived from a BIN.
type CardNetwork int

const (
	CardNetworkUnknown CardNetwork = iota
	CardNetworkVisa
	CardNetworkMastercard
	CardNetworkDiscover
	CardNetworkAmex
)

func (n CardNetwork) String() string {
	switch n {
	case CardNetworkVisa:
		return "visa"
	case CardNetworkMastercard:
		return "mastercard"
	case CardNetworkDiscover:
		return "discover"
	case CardNetworkAmex:
		return "amex"
	default:
		return "unknown"
	}
}

// ClassifyBIN reports the card network of a 6-8 digit BIN. The second result is
// false when the BIN is malformed, in which case it counts as absent.
func ClassifyBIN(bin string) (CardNetwork, bool) {
	if len(bin) < 6 || len(bin) > 8 {
		return CardNetworkUnknown, false
	}
	for _, r := range bin {
		if r < '0' || r > '9' {
			return CardNetworkUnknown, false
		}
	}

	prefix := func(n int) int {
		v, _ := strconv.Atoi(bin[:n])
		return v
	}

	switch p2, p3, p4 := prefix(2), prefix(3), prefix(4); {
	case bin[0] == '4':
		return CardNetworkVisa, true
	case p2 == 34 || p2 == 37:
		return CardNetworkAmex, true
	case p2 >= 51 && p2 <= 55, p4 >= 2221 && p4 <= 2720:
		return CardNetworkMastercard, true
	case p4 == 6011, p2 == 65, p3 >= 644 && p3 <= 649, p2 == 62:
		return CardNetworkDiscover, true
	default:
		return CardNetworkUnknown, true
	}
}
