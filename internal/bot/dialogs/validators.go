package dialogs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateTimeLayout = "02.01.2006 15:04"

// routeChecker is satisfied by the static snapshot.
type routeChecker interface {
	HasRouteName(shortName string) bool
}

// validRoute accepts only line numbers present in the current static
// feed.
func validRoute(check func() routeChecker) func(string) (string, error) {
	return func(input string) (string, error) {
		route := strings.TrimSpace(input)
		rc := check()
		if rc == nil || !rc.HasRouteName(route) {
			return "", errors.New("Такого маршруту немає. Вкажіть номер маршруту, наприклад: 5")
		}
		return route, nil
	}
}

// validDateTime accepts `DD.MM.YYYY HH:MM` with a real calendar date.
// time.Parse rejects impossible dates like 30.02.
func validDateTime(input string) (string, error) {
	v := strings.TrimSpace(input)
	if _, err := time.Parse(dateTimeLayout, v); err != nil {
		return "", errors.New("Невірний формат. Вкажіть дату і час як ДД.ММ.РРРР ГГ:ХХ, наприклад: 28.10.2025 14:30")
	}
	return v, nil
}

// validFutureDateTime additionally requires the moment to be in the
// future, for museum slot creation.
func validFutureDateTime(now func() time.Time) func(string) (string, error) {
	return func(input string) (string, error) {
		v, err := validDateTime(input)
		if err != nil {
			return "", err
		}
		t, _ := time.ParseInLocation(dateTimeLayout, v, time.Local)
		if !t.After(now()) {
			return "", errors.New("Дата вже минула. Вкажіть дату в майбутньому.")
		}
		return v, nil
	}
}

// validContact parses "Name, +380XXXXXXXXX". The comma split is
// forgiving about spacing; the phone must look like a phone.
func validContact(input string) (string, error) {
	name, phone, ok := strings.Cut(input, ",")
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if !ok || name == "" || !looksLikePhone(phone) {
		return "", errors.New("Вкажіть ім'я та телефон через кому, наприклад: Іван Петренко, +380501112233")
	}
	return name + "," + phone, nil
}

func looksLikePhone(s string) bool {
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 9
}

// validPhone accepts a bare phone number.
func validPhone(input string) (string, error) {
	v := strings.TrimSpace(input)
	if !looksLikePhone(v) {
		return "", errors.New("Невірний номер. Вкажіть телефон, наприклад: +380501112233")
	}
	return v, nil
}

// splitContact undoes validContact's normalization.
func splitContact(v string) (name, phone string) {
	name, phone, _ = strings.Cut(v, ",")
	return name, phone
}

// validPartySize accepts an integer in [2,10].
func validPartySize(input string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 2 || n > 10 {
		return "", errors.New("Кількість осіб має бути числом від 2 до 10.")
	}
	return strconv.Itoa(n), nil
}

// validEmail is deliberately lenient; a dash skips the field.
func validEmail(input string) (string, error) {
	v := strings.TrimSpace(input)
	if v == "-" {
		return "", nil
	}
	at := strings.Index(v, "@")
	if at < 1 || at == len(v)-1 || strings.ContainsAny(v, " \t") {
		return "", errors.New("Невірна адреса. Вкажіть email або надішліть «-», щоб пропустити.")
	}
	return v, nil
}

// validNonEmpty trims and requires something left.
func validNonEmpty(message string) func(string) (string, error) {
	return func(input string) (string, error) {
		v := strings.TrimSpace(input)
		if v == "" {
			return "", errors.New(message)
		}
		return v, nil
	}
}

// parseLatLon decodes the engine's "lat,lon" location encoding.
func parseLatLon(v string) (lat, lon float64, err error) {
	a, b, ok := strings.Cut(v, ",")
	if !ok {
		return 0, 0, fmt.Errorf("bad location %q", v)
	}
	lat, err = strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err = strconv.ParseFloat(b, 64)
	return lat, lon, err
}
