package token

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := map[string]struct {
		line string
		exp  []string
	}{
		"empty": {
			line: "",
			exp:  nil,
		},
		"whitespace only": {
			line: "   \t  ",
			exp:  nil,
		},
		"single word": {
			line: "ls",
			exp:  []string{"ls"},
		},
		"tabs and spaces": {
			line: "ls\t-la  /tmp",
			exp:  []string{"ls", "-la", "/tmp"},
		},
		"pipeline": {
			line: "cat < missing | wc -l &",
			exp:  []string{"cat", "<", "missing", "|", "wc", "-l", "&"},
		},
		"leading and trailing whitespace": {
			line: "  sleep 30 &  ",
			exp:  []string{"sleep", "30", "&"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := Tokenize(test.line)
			if !reflect.DeepEqual(got, test.exp) {
				t.Fatalf("got %#v, expected %#v", got, test.exp)
			}
		})
	}
}
