package speech

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "I worked on a payments team", "I worked on a payments team"},
		{"leading filler", "Um I think so", "I think so"},
		{"filler with comma", "Uh, my answer is yes", "my answer is yes"},
		{"elongated filler", "ummm yes", "yes"},
		{"multiple fillers", "er well uh maybe hm", "well maybe"},
		{"dropped apostrophe", "I dont know", "I don't know"},
		{"contraction with period", "It wasnt me.", "It wasn't me."},
		{"im capitalized", "im a backend engineer", "I'm a backend engineer"},
		{"whitespace collapsed", "  spaced   out  ", "spaced out"},
		{"only fillers", "um uh er", ""},
		{"empty", "", ""},
		{"short words survive", "ask him or her", "ask him or her"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCollapseRepeats(t *testing.T) {
	cases := map[string]string{
		"ummm":  "um",
		"uhhhh": "uh",
		"hello": "helo",
		"a":     "a",
		"":      "",
	}
	for in, want := range cases {
		if got := collapseRepeats(in); got != want {
			t.Errorf("collapseRepeats(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitTrailingPunct(t *testing.T) {
	word, punct := splitTrailingPunct("right?!")
	if word != "right" || punct != "?!" {
		t.Errorf("got %q + %q", word, punct)
	}

	word, punct = splitTrailingPunct("plain")
	if word != "plain" || punct != "" {
		t.Errorf("got %q + %q", word, punct)
	}
}
