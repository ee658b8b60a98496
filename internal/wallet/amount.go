package wallet

import (
	"fmt"
	"github.com/shopspring/decimal"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const nanoDecimals = 9

// ToNano переводит сумму в TON (десятичная строка) в нанотоны без потерь точности
func ToNano(amount string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return "", fmt.Errorf("invalid TON amount %q: %w", amount, err)
	}
	if !d.IsPositive() {
		return "", fmt.Errorf("invalid TON amount %q: must be positive", amount)
	}
	nano := d.Shift(nanoDecimals)
	if !nano.Equal(nano.Truncate(0)) {
		return "", fmt.Errorf("invalid TON amount %q: more than %d decimals", amount, nanoDecimals)
	}
	return nano.BigInt().String(), nil
}

// FloatToNano - то же для сумм, пришедших числом (пополнение на 0.5, 1, 2, 5 TON)
func FloatToNano(amount float64) (string, error) {
	return ToNano(decimal.NewFromFloat(amount).String())
}

// FromNano - обратное преобразование, для отображения
func FromNano(nano string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(nano)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-nanoDecimals), nil
}

var (
	friendlyAddr = regexp.MustCompile(`^[EUk0]Q[A-Za-z0-9_\-+/]{46}$`)
	rawAddr      = regexp.MustCompile(`^-?[0-9]+:[0-9a-fA-F]{64}$`)
)

// ValidAddress - user-friendly (EQ.../UQ...) или raw (0:hex) адрес TON
func ValidAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	return friendlyAddr.MatchString(addr) || rawAddr.MatchString(addr)
}

// TransferLink - ссылка ton://transfer для любого кошелька
func TransferLink(m Message, validUntil int64) string {
	return "ton://transfer/" + m.Address + "?" + transferQuery(m, validUntil)
}

// TonkeeperLink - https-ссылка, её можно повесить на inline-кнопку
func TonkeeperLink(m Message, validUntil int64) string {
	return "https://app.tonkeeper.com/transfer/" + m.Address + "?" + transferQuery(m, validUntil)
}

func transferQuery(m Message, validUntil int64) string {
	q := url.Values{}
	q.Set("amount", m.Amount)
	if m.Comment != "" {
		q.Set("text", m.Comment)
	}
	if validUntil > 0 {
		q.Set("exp", strconv.FormatInt(validUntil, 10))
	}
	return q.Encode()
}
