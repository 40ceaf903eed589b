package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod identifies how a cart is being paid. Hosted methods run
// through a payment-link processor; crypto methods carry the coin symbol
// as a suffix and settle through manual verification.
type PaymentMethod string

const (
	PaymentMethodPayPal PaymentMethod = "paypal"
	PaymentMethodSquare PaymentMethod = "square"

	cryptoMethodPrefix = "crypto_"
)

// CryptoCoins are the coin symbols accepted for manual crypto checkout.
var CryptoCoins = []string{"BTC", "ETH", "LTC"}

// CryptoPaymentMethod builds the payment method tag for a coin symbol.
func CryptoPaymentMethod(coin string) PaymentMethod {
	return PaymentMethod(cryptoMethodPrefix + strings.ToUpper(strings.TrimSpace(coin)))
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsHosted reports whether the method settles through a hosted payment
// link processor.
func (p PaymentMethod) IsHosted() bool {
	return p == PaymentMethodPayPal || p == PaymentMethodSquare
}

// IsCrypto reports whether the method is a manual crypto flow.
func (p PaymentMethod) IsCrypto() bool {
	return strings.HasPrefix(string(p), cryptoMethodPrefix)
}

// CryptoCoin returns the coin symbol for crypto methods, or empty.
func (p PaymentMethod) CryptoCoin() string {
	if !p.IsCrypto() {
		return ""
	}
	return strings.TrimPrefix(string(p), cryptoMethodPrefix)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	if p.IsHosted() {
		return true
	}
	coin := p.CryptoCoin()
	for _, candidate := range CryptoCoins {
		if candidate == coin {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	method := PaymentMethod(strings.TrimSpace(value))
	if method.IsValid() {
		return method, nil
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
