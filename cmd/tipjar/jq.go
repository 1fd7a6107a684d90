package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
)

// compileJQ compiles a single jq expression. An empty expression yields nil.
func compileJQ(expr string) (*gojq.Code, error) {
	if expr == "" {
		return nil, nil
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}
	return code, nil
}

// jqCheck is a compiled --must-jq expression.
type jqCheck struct {
	expr string
	code *gojq.Code
}

func compileJQChecks(exprs []string) ([]jqCheck, error) {
	checks := make([]jqCheck, 0, len(exprs))
	for _, expr := range exprs {
		code, err := compileJQ(expr)
		if err != nil {
			return nil, err
		}
		if code != nil {
			checks = append(checks, jqCheck{expr: expr, code: code})
		}
	}
	return checks, nil
}

// toJQInput converts a Go value into the generic JSON form gojq expects.
func toJQInput(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func runJQ(code *gojq.Code, v interface{}) ([]interface{}, error) {
	input, err := toJQInput(v)
	if err != nil {
		return nil, err
	}
	var results []interface{}
	iter := code.Run(input)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := r.(error); ok {
			return nil, fmt.Errorf("jq error: %w", err)
		}
		results = append(results, r)
	}
	return results, nil
}

// mustMatch fails unless every check yields only truthy results.
func mustMatch(checks []jqCheck, v interface{}) error {
	for _, check := range checks {
		results, err := runJQ(check.code, v)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("jq check %q produced no result", check.expr)
		}
		for _, r := range results {
			if !isTruthy(r) {
				return fmt.Errorf("jq check %q failed: got %v", check.expr, r)
			}
		}
	}
	return nil
}

func printJQ(w io.Writer, code *gojq.Code, v interface{}) error {
	results, err := runJQ(code, v)
	if err != nil {
		return err
	}
	for _, r := range results {
		if s, ok := r.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
