package dialogs

import (
	"testing"
	"time"
)

type fakeRouteChecker map[string]bool

func (f fakeRouteChecker) HasRouteName(name string) bool { return f[name] }

func TestValidRoute(t *testing.T) {
	known := fakeRouteChecker{"5": true, "103": true}
	v := validRoute(func() routeChecker { return known })

	if got, err := v(" 5 "); err != nil || got != "5" {
		t.Errorf("known route must validate and trim, got %q, %v", got, err)
	}
	if _, err := v("99"); err == nil {
		t.Error("unknown route must be rejected")
	}

	noSnap := validRoute(func() routeChecker { return nil })
	if _, err := noSnap("5"); err == nil {
		t.Error("missing snapshot must reject rather than accept blindly")
	}
}

func TestValidDateTime(t *testing.T) {
	if got, err := validDateTime("28.10.2025 14:30"); err != nil || got != "28.10.2025 14:30" {
		t.Errorf("valid datetime rejected: %q, %v", got, err)
	}
	for _, bad := range []string{
		"30.02.2025 10:00", // impossible calendar date
		"2025-10-28 14:30", // wrong layout
		"28.10.2025",       // date only
		"trash",
	} {
		if _, err := validDateTime(bad); err == nil {
			t.Errorf("%q must be rejected", bad)
		}
	}
}

func TestValidFutureDateTime(t *testing.T) {
	now := func() time.Time {
		return time.Date(2025, 10, 28, 12, 0, 0, 0, time.Local)
	}
	v := validFutureDateTime(now)

	if _, err := v("30.02.2025 10:00"); err == nil {
		t.Error("invalid calendar date must be rejected")
	}
	if _, err := v("01.01.2020 10:00"); err == nil {
		t.Error("past date must be rejected")
	}
	if got, err := v("25.11.2030 11:00"); err != nil || got != "25.11.2030 11:00" {
		t.Errorf("future date must validate, got %q, %v", got, err)
	}
}

func TestValidContact(t *testing.T) {
	got, err := validContact("Ivan Petrov, +380501112233")
	if err != nil {
		t.Fatalf("valid contact rejected: %v", err)
	}
	name, phone := splitContact(got)
	if name != "Ivan Petrov" || phone != "+380501112233" {
		t.Errorf("contact split wrong: %q / %q", name, phone)
	}

	for _, bad := range []string{
		"Ivan Petrov",         // no phone
		", +380501112233",     // no name
		"Ivan, not-a-phone",   // junk phone
		"Ivan, +380",          // too short
	} {
		if _, err := validContact(bad); err == nil {
			t.Errorf("%q must be rejected", bad)
		}
	}
}

func TestValidPartySize(t *testing.T) {
	for _, bad := range []string{"1", "11", "0", "-3", "two", ""} {
		if _, err := validPartySize(bad); err == nil {
			t.Errorf("party size %q must be rejected", bad)
		}
	}
	for _, ok := range []string{"2", "3", "10", " 5 "} {
		if _, err := validPartySize(ok); err != nil {
			t.Errorf("party size %q must be accepted: %v", ok, err)
		}
	}
}

func TestValidEmail(t *testing.T) {
	if got, err := validEmail("-"); err != nil || got != "" {
		t.Errorf("dash must skip the field, got %q, %v", got, err)
	}
	if got, err := validEmail("user@example.com"); err != nil || got != "user@example.com" {
		t.Errorf("plain email rejected: %q, %v", got, err)
	}
	for _, bad := range []string{"@host", "user@", "no at sign", "a b@c.d"} {
		if _, err := validEmail(bad); err == nil {
			t.Errorf("%q must be rejected", bad)
		}
	}
}

func TestValidPhone(t *testing.T) {
	if got, err := validPhone(" +380 93 123 45 67 "); err != nil || got != "+380 93 123 45 67" {
		t.Errorf("spaced phone must be accepted trimmed, got %q, %v", got, err)
	}
	if _, err := validPhone("call me"); err == nil {
		t.Error("non-phone must be rejected")
	}
}

func TestParseLatLon(t *testing.T) {
	lat, lon, err := parseLatLon("46.470000,30.740000")
	if err != nil || lat != 46.47 || lon != 30.74 {
		t.Errorf("parseLatLon: %v %v %v", lat, lon, err)
	}
	if _, _, err := parseLatLon("46.47"); err == nil {
		t.Error("missing longitude must fail")
	}
}
