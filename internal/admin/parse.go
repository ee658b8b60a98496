package admin

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"net"
	"strconv"
	"strings"
	"zyvpn-miniapp/internal/api"
	"zyvpn-miniapp/internal/views"
)

var errBadInput = errors.New("неверный формат")

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: ID пользователя", errBadInput)
	}
	return id, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: число", errBadInput)
	}
	return v, nil
}

func parseAmount(s string) (float64, error) {
	v, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, fmt.Errorf("%w: сумма не может быть нулевой", errBadInput)
	}
	return v, nil
}

func parseBalance(s string) (float64, error) {
	v, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: баланс не может быть отрицательным", errBadInput)
	}
	return v, nil
}

func parseDays(s string) (int, error) {
	d, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: количество дней", errBadInput)
	}
	return d, nil
}

func parseIP(s string) (string, error) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return "", fmt.Errorf("%w: IP-адрес", errBadInput)
	}
	return ip.String(), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: идентификатор", errBadInput)
	}
	return id, nil
}

var promoTypes = map[string]bool{"balance": true, "days": true, "region_switch": true}

// parsePromo разбирает "type value [max_uses]"
func parsePromo(fields []string) (api.PromoSpec, error) {
	if len(fields) < 2 || len(fields) > 3 {
		return api.PromoSpec{}, fmt.Errorf("%w: тип значение [лимит]", errBadInput)
	}
	spec := api.PromoSpec{Type: strings.ToLower(fields[0])}
	if !promoTypes[spec.Type] {
		return spec, fmt.Errorf("%w: тип balance, days или region_switch", errBadInput)
	}
	v, err := parseFloat(fields[1])
	if err != nil || v <= 0 {
		return spec, fmt.Errorf("%w: значение промокода", errBadInput)
	}
	spec.Value = v
	if len(fields) == 3 {
		n, err := strconv.Atoi(fields[2])
		if err != nil || n <= 0 {
			return spec, fmt.Errorf("%w: лимит использований", errBadInput)
		}
		spec.MaxUses = &n
	}
	return spec, nil
}

// parseBulk разбирает "count type value [max_uses] [prefix]"
func parseBulk(fields []string) (int, api.PromoSpec, string, error) {
	if len(fields) < 3 {
		return 0, api.PromoSpec{}, "", fmt.Errorf("%w: количество тип значение [лимит] [префикс]", errBadInput)
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil || count <= 0 || count > 1000 {
		return 0, api.PromoSpec{}, "", fmt.Errorf("%w: количество от 1 до 1000", errBadInput)
	}
	rest := fields[1:]
	var prefix string
	if len(rest) == 4 {
		prefix = strings.ToUpper(rest[3])
		rest = rest[:3]
	} else if len(rest) == 3 {
		if _, err := strconv.Atoi(rest[2]); err != nil {
			prefix = strings.ToUpper(rest[2])
			rest = rest[:2]
		}
	}
	spec, err := parsePromo(rest)
	return count, spec, prefix, err
}

func splitArgs(line string, n int) ([]string, error) {
	parts := strings.Split(line, ";")
	if len(parts) != n {
		return nil, fmt.Errorf("%w: нужно %d полей через ;", errBadInput, n)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func atoiField(s, name string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s", errBadInput, name)
	}
	return v, nil
}

// parsePlan разбирает "name;days;traffic_gb;devices;price_ton;price_stars;price_usd"
func parsePlan(line string) (api.PlanInput, error) {
	f, err := splitArgs(line, 7)
	if err != nil {
		return api.PlanInput{}, err
	}
	in := api.PlanInput{Name: f[0]}
	if in.Name == "" {
		return in, fmt.Errorf("%w: название", errBadInput)
	}
	if in.DurationDays, err = parseDays(f[1]); err != nil {
		return in, err
	}
	if in.TrafficGB, err = atoiField(f[2], "трафик"); err != nil {
		return in, err
	}
	if in.MaxDevices, err = atoiField(f[3], "устройства"); err != nil {
		return in, err
	}
	if in.PriceTON, err = parseFloat(f[4]); err != nil {
		return in, err
	}
	if in.PriceStars, err = atoiField(f[5], "цена в звёздах"); err != nil {
		return in, err
	}
	if in.PriceUSD, err = parseFloat(f[6]); err != nil {
		return in, err
	}
	return in, nil
}

// parseServer разбирает "name;country;flag;address;port;xui_url;xui_user;xui_pass;inbound_id"
func parseServer(line string) (api.ServerInput, error) {
	f, err := splitArgs(line, 9)
	if err != nil {
		return api.ServerInput{}, err
	}
	in := api.ServerInput{
		Name:          f[0],
		Country:       f[1],
		FlagEmoji:     f[2],
		ServerAddress: f[3],
		XUIBaseURL:    f[5],
		XUIUsername:   f[6],
		XUIPassword:   f[7],
		IsActive:      true,
	}
	if in.Name == "" || in.ServerAddress == "" || in.XUIBaseURL == "" {
		return in, fmt.Errorf("%w: название, адрес и URL панели обязательны", errBadInput)
	}
	if in.ServerPort, err = atoiField(f[4], "порт"); err != nil {
		return in, err
	}
	if in.XUIInboundID, err = atoiField(f[8], "inbound id"); err != nil {
		return in, err
	}
	return in, nil
}

// parseSetting - дни целые, остальное дробное
func parseSetting(key, raw string) (float64, error) {
	if key == views.SettingReferralBonusDays {
		d, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || d < 0 {
			return 0, fmt.Errorf("%w: количество дней", errBadInput)
		}
		return float64(d), nil
	}
	v, err := parseFloat(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: неотрицательное число", errBadInput)
	}
	return v, nil
}
