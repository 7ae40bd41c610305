package aspect

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"economy", Economy, true},
		{"Economy", Economy, true},
		{"  MILITARY  ", Military, true},
		{"religion/culture", Religion, true},
		{"foreign policy", Diplomacy, true},
		{"government", Governance, true},
		{"Экономика", Economy, true},
		{"строительство", Construction, true},
		{"дипломатия:", Diplomacy, true},
		{"внешняя политика", Diplomacy, true},
		{"управление и право", Governance, true},
		{"строительство и инфраструктура", Construction, true},
		{"общественные отношения", Society, true},
		{"технологичность", Technology, true},
		{"territory.", Territory, true},
		{"morale", "", false},
		{"", "", false},
		{"   ", "", false},
	}
	for _, c := range cases {
		got, ok := Normalize(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("Normalize(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {3, 3}, {5, 5}, {6, 5}, {100, 5},
	}
	for _, c := range cases {
		if got := Clamp(c.in); got != c.want {
			t.Errorf("Clamp(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestInitialStats(t *testing.T) {
	m := InitialStats()
	if len(m) != len(All) {
		t.Fatalf("got %d aspects, want %d", len(m), len(All))
	}
	for _, a := range All {
		if m[a] != InitialRating {
			t.Errorf("initial %s = %d, want %d", a, m[a], InitialRating)
		}
	}
}
