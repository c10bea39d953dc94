package pos

import "strings"

// PaymentMethod identifies how a sale was settled.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentMoMo  PaymentMethod = "momo"
	PaymentOther PaymentMethod = "other"
)

// PaymentMethods lists the accepted methods in display order.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentMoMo, PaymentOther}

// ParsePaymentMethod normalises user input.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case PaymentCash:
		return PaymentCash, nil
	case PaymentCard:
		return PaymentCard, nil
	case PaymentMoMo, "mobile money", "mobile_money":
		return PaymentMoMo, nil
	case PaymentOther:
		return PaymentOther, nil
	}
	return "", invalid("Choose a payment method: Cash, Card, MoMo or Other.")
}

// Label is the printable name.
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentCash:
		return "Cash"
	case PaymentCard:
		return "Card"
	case PaymentMoMo:
		return "Mobile Money"
	case PaymentOther:
		return "Other"
	}
	return string(m)
}
