package log

import "testing"

func TestParseLevel(t *testing.T) {
	tests := map[string]struct {
		input    string
		expected LogLevel
	}{
		"debug":    {"debug", Debug},
		"warn":     {"WARN", Warn},
		"error":    {"Error", Error},
		"fallback": {"nonsense", Info},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := Parse(test.input); got != test.expected {
				t.Errorf("Parse(%q) = %v, expected %v", test.input, got, test.expected)
			}
		})
	}
}

func TestNamed(t *testing.T) {
	root := Discard()

	child := root.Named("store")
	if child.Name != "store" {
		t.Errorf("child name = %q", child.Name)
	}

	grandchild := child.Named("inode")
	if grandchild.Name != "store/inode" {
		t.Errorf("grandchild name = %q", grandchild.Name)
	}

	// Deriving must not touch the parent
	if root.Name != "" {
		t.Errorf("parent name mutated: %q", root.Name)
	}
}
