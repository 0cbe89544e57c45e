package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanObject(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want string
		ok   bool
	}{
		"plain": {
			raw:  `{"decision":"HOLD","adjustment":0}`,
			want: `{"decision":"HOLD","adjustment":0}`,
			ok:   true,
		},
		"fenced with think": {
			raw:  "<think>weighing {risk}</think>\n```json\n{\"decision\":\"EXECUTE\",\"adjustment\":10,}\n```",
			want: `{"decision":"EXECUTE","adjustment":10}`,
			ok:   true,
		},
		"prose around": {
			raw:  `结论如下 {"bull_view":"量能{放大}","list":[1,2,],"adjustment":-5} 以上`,
			want: `{"bull_view":"量能{放大}","list":[1,2],"adjustment":-5}`,
			ok:   true,
		},
		"unbalanced falls back to outer braces": {
			raw:  `{"a":{"b":1}`,
			want: `{"a":{"b":1}`,
			ok:   true,
		},
		"no object": {raw: "offline", ok: false},
		"empty":     {raw: "   ", ok: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := CleanObject(tc.raw)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
