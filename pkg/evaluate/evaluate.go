// Package evaluate runs arithmetic/logical expressions from job operations.
package evaluate

import (
	"fmt"
	"strconv"

	"github.com/expr-lang/expr"
)

// Evaluate computes a single expression and renders the value as text.
//
// Evaluation failures are data, not pipeline failures: a malformed
// expression or a runtime fault (such as division by zero) yields the
// error text as the result string. Every input produces a result.
func Evaluate(request string) string {
	program, err := expr.Compile(request)
	if err != nil {
		return err.Error()
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return err.Error()
	}
	return render(out)
}

func render(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
