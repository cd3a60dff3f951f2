package reconcile

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"PT Sawit Makmur", "sawit makmur"},
		{"PT. Sawit Makmur", "sawit makmur"},
		{"  CV  Tani   Subur  ", "tani subur"},
		{"PT Sawit Makmur (Kebun Barat)", "sawit makmur"},
		{"UD. Harapan (cab. 2) Jaya", "harapan jaya"},
		{"pt", "pt"},
		{"PT PT Jaya", "jaya"},
		{"", ""},
		{"   ", ""},
		{"()", ""},
		{"Blok A-01", "blok a-01"},
	}
	for _, tc := range cases {
		if got := Canonicalize(tc.in); got != tc.expected {
			t.Fatalf("Canonicalize(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"PT Sawit Makmur",
		"PT. Sawit Makmur (Estate B)",
		"CV   Tani Subur",
		"PT PT Jaya",
		"ud. kecil",
		"",
		"   (only parens)   ",
		"random text with no prefix",
	}
	for _, in := range inputs {
		once := Canonicalize(in)
		twice := Canonicalize(once)
		if once != twice {
			t.Fatalf("Canonicalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
