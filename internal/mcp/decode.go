package mcp

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"reflect"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/dxtcheck/internal/errors"
)

// decodeArgs maps a tool call's arguments onto one of the *Request structs.
// A malformed argument is an INVALID_REQUEST naming the argument.
func decodeArgs[T any](req mcp.CallToolRequest) (T, error) {
	var input T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return input, errors.NewInvalidRequest(fmt.Sprintf("arguments are not JSON: %v", err))
	}

	if err := json.Unmarshal(b, &input); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return input, errors.NewInvalidRequest(fmt.Sprintf("argument %q must be %s, got %s", typeErr.Field, jsonKind(typeErr.Type), typeErr.Value))
		}
		return input, errors.NewInvalidRequest(fmt.Sprintf("invalid arguments: %v", err))
	}
	return input, nil
}

// jsonKind names a Go kind the way tool schemas do.
func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int64, reflect.Float64:
		return "a number"
	}
	return t.String()
}
