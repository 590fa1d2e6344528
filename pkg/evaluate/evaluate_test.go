package evaluate

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	for _, tc := range []struct {
		request string
		result  string
	}{
		{"1+1", "2"},
		{"2*3", "6"},
		{"10/2", "5"},
		{"1.5 + 1", "2.5"},
		{"1 < 2", "true"},
		{`"a" + "b"`, "ab"},
		{"2 ** 8", "256"},
	} {
		t.Run(tc.request, func(t *testing.T) {
			assert.Equal(t, tc.result, Evaluate(tc.request))
		})
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	res := Evaluate("10/0")
	assert.Contains(t, res, "divide by zero")
}

func TestEvaluateMalformed(t *testing.T) {
	// A broken expression still yields a result string, never a crash.
	res := Evaluate("1 +")
	assert.NotEmpty(t, res)
	_, err := strconv.Atoi(res)
	assert.Error(t, err, "malformed input must not evaluate to a number")
}
