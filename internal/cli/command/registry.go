package command

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "problem",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/problems",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "title", Prompt: "title", Type: FieldString, Required: true},
				{Name: "description", Prompt: "description", Type: FieldString, Required: false},
				{Name: "default_code", Prompt: "default_code", Type: FieldString, Required: false},
				{Name: "solution_code", Prompt: "solution_code", Type: FieldString, Required: true},
				{Name: "difficulty", Prompt: "difficulty (0.5 .. 5.0)", Type: FieldFloat, Required: true},
				{Name: "time_limit_ms", Prompt: "time_limit_ms", Type: FieldInt, Required: false},
				{Name: "header_mode", Prompt: "header_mode (ALLOWED|DISALLOWED)", Type: FieldString, Required: false},
				{Name: "headers", Prompt: "headers (comma-separated)", Type: FieldStringList, Required: false},
				{Name: "function_mode", Prompt: "function_mode (ALLOWED|DISALLOWED)", Type: FieldString, Required: false},
				{Name: "functions", Prompt: "functions (comma-separated)", Type: FieldStringList, Required: false},
				{Name: "tags", Prompt: "tags (comma-separated)", Type: FieldStringList, Required: false},
				{Name: "test_cases_json", Prompt: "test_cases_json (JSON array)", Type: FieldJSON, Required: true},
				{Name: "solution_file", Prompt: "solution_file", Type: FieldFile, Required: false},
				{Name: "test_cases_file", Prompt: "test_cases_file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "problem",
			Action:       "get",
			Method:       "GET",
			PathTemplate: "/api/v1/problems/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "update",
			Method:       "PATCH",
			PathTemplate: "/api/v1/problems/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
				{Name: "title", Prompt: "title", Type: FieldString, Required: false},
				{Name: "description", Prompt: "description", Type: FieldString, Required: false},
				{Name: "default_code", Prompt: "default_code", Type: FieldString, Required: false},
				{Name: "solution_code", Prompt: "solution_code", Type: FieldString, Required: false},
				{Name: "difficulty", Prompt: "difficulty", Type: FieldFloat, Required: false},
				{Name: "time_limit_ms", Prompt: "time_limit_ms", Type: FieldInt, Required: false},
				{Name: "header_mode", Prompt: "header_mode", Type: FieldString, Required: false},
				{Name: "headers", Prompt: "headers (comma-separated)", Type: FieldStringList, Required: false},
				{Name: "function_mode", Prompt: "function_mode", Type: FieldString, Required: false},
				{Name: "functions", Prompt: "functions (comma-separated)", Type: FieldStringList, Required: false},
				{Name: "tags", Prompt: "tags (comma-separated)", Type: FieldStringList, Required: false},
				{Name: "solution_file", Prompt: "solution_file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "problem",
			Action:       "delete",
			Method:       "DELETE",
			PathTemplate: "/api/v1/problems/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "review",
			Method:       "POST",
			PathTemplate: "/api/v1/problems/:id/review",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "publish",
			Method:       "POST",
			PathTemplate: "/api/v1/problems/:id/publish",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "reject",
			Method:       "POST",
			PathTemplate: "/api/v1/problems/:id/reject",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
				{Name: "message", Prompt: "message", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "archive",
			Method:       "POST",
			PathTemplate: "/api/v1/problems/:id/archive",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "reopen",
			Method:       "POST",
			PathTemplate: "/api/v1/problems/:id/reopen",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "search",
			Method:       "GET",
			PathTemplate: "/api/v1/problems",
			RequiresAuth: true,
			QueryFields: []Field{
				{Name: "search_text", Prompt: "search_text", Type: FieldString, Required: false},
				{Name: "tags", Prompt: "tags (comma-separated)", Type: FieldString, Required: false},
				{Name: "min_difficulty", Prompt: "min_difficulty", Type: FieldFloat, Required: false},
				{Name: "max_difficulty", Prompt: "max_difficulty", Type: FieldFloat, Required: false},
				{Name: "status", Prompt: "status", Type: FieldString, Required: false},
				{Name: "staff_view", Prompt: "staff_view (true|false)", Type: FieldBool, Required: false},
				{Name: "id_reverse", Prompt: "id_reverse (true|false)", Type: FieldBool, Required: false},
				{Name: "difficulty_sort_by", Prompt: "difficulty_sort_by (ASC|DESC)", Type: FieldString, Required: false},
				{Name: "page", Prompt: "page", Type: FieldInt, Required: false},
				{Name: "limit", Prompt: "limit", Type: FieldInt, Required: false},
			},
		},
		{
			Service:      "testcase",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/problems/:id/test-cases",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
				{Name: "input", Prompt: "input", Type: FieldString, Required: true},
				{Name: "is_hidden", Prompt: "is_hidden (true|false)", Type: FieldBool, Required: false},
				{Name: "input_file", Prompt: "input_file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "testcase",
			Action:       "update",
			Method:       "PATCH",
			PathTemplate: "/api/v1/test-cases/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "test_case_id", Type: FieldInt64, Required: true},
				{Name: "input", Prompt: "input", Type: FieldString, Required: false},
				{Name: "is_hidden", Prompt: "is_hidden (true|false)", Type: FieldBool, Required: false},
				{Name: "input_file", Prompt: "input_file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "testcase",
			Action:       "delete",
			Method:       "DELETE",
			PathTemplate: "/api/v1/test-cases/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "test_case_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "submit",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/problems/:id/submissions",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
				{Name: "code", Prompt: "code", Type: FieldString, Required: true},
				{Name: "code_file", Prompt: "code_file", Type: FieldFile, Required: false},
			},
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		key := fmt.Sprintf("%s %s", cmd.Service, cmd.Action)
		result[key] = cmd
	}
	return result
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	if len(cmd.QueryFields) > 0 {
		query := url.Values{}
		for _, field := range cmd.QueryFields {
			if value := params.Get(field.Name); value != "" {
				query.Set(field.Name, value)
			}
		}
		if encoded := query.Encode(); encoded != "" {
			path = path + "?" + encoded
		}
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	placeholder := ":id"
	if strings.Contains(path, placeholder) {
		value := params.Get("id")
		if value == "" {
			return "", fmt.Errorf("missing path parameter: id")
		}
		path = strings.ReplaceAll(path, placeholder, value)
	}
	return path, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	switch cmd.Service {
	case "problem":
		switch cmd.Action {
		case "create":
			return buildProblemCreatePayload(params)
		case "update":
			return buildProblemUpdatePayload(params)
		case "reject":
			return map[string]string{"message": params.Get("message")}, nil
		}
	case "testcase":
		switch cmd.Action {
		case "create", "update":
			return buildTestCasePayload(cmd.Action, params)
		}
	case "submit":
		if cmd.Action == "create" {
			code, err := stringOrFile(params, "code", "code_file")
			if err != nil {
				return nil, err
			}
			if code == "" {
				return nil, fmt.Errorf("code is required")
			}
			return map[string]interface{}{"code": code}, nil
		}
	}
	return nil, nil
}

func buildProblemCreatePayload(params Params) (interface{}, error) {
	solutionCode, err := stringOrFile(params, "solution_code", "solution_file")
	if err != nil {
		return nil, err
	}
	if solutionCode == "" {
		return nil, fmt.Errorf("solution_code is required")
	}
	difficulty, err := ParseFloat(params.Get("difficulty"))
	if err != nil {
		return nil, fmt.Errorf("invalid difficulty: %w", err)
	}

	var testCasesRaw string
	if params.Get("test_cases_file") != "" {
		testCasesRaw, err = ReadFile(params.Get("test_cases_file"))
		if err != nil {
			return nil, err
		}
	} else {
		testCasesRaw = params.Get("test_cases_json")
	}
	testCases, err := ParseJSON(testCasesRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid test_cases_json: %w", err)
	}

	payload := map[string]interface{}{
		"title":         params.Get("title"),
		"solution_code": solutionCode,
		"difficulty":    difficulty,
		"test_cases":    testCases,
	}
	if params.Get("description") != "" {
		payload["description"] = params.Get("description")
	}
	if params.Get("default_code") != "" {
		payload["default_code"] = params.Get("default_code")
	}
	if params.Get("time_limit_ms") != "" {
		timeLimit, err := ParseInt(params.Get("time_limit_ms"))
		if err != nil {
			return nil, fmt.Errorf("invalid time_limit_ms: %w", err)
		}
		payload["time_limit_ms"] = timeLimit
	}
	if params.Get("header_mode") != "" {
		payload["header_mode"] = params.Get("header_mode")
	}
	if params.Get("headers") != "" {
		payload["headers"] = ParseStringList(params.Get("headers"))
	}
	if params.Get("function_mode") != "" {
		payload["function_mode"] = params.Get("function_mode")
	}
	if params.Get("functions") != "" {
		payload["functions"] = ParseStringList(params.Get("functions"))
	}
	if params.Get("tags") != "" {
		payload["tags"] = ParseStringList(params.Get("tags"))
	}
	return payload, nil
}

func buildProblemUpdatePayload(params Params) (interface{}, error) {
	payload := map[string]interface{}{}
	solutionCode, err := stringOrFile(params, "solution_code", "solution_file")
	if err != nil {
		return nil, err
	}
	if solutionCode != "" {
		payload["solution_code"] = solutionCode
	}
	for _, key := range []string{"title", "description", "default_code", "header_mode", "function_mode"} {
		if params.Get(key) != "" {
			payload[key] = params.Get(key)
		}
	}
	if params.Get("difficulty") != "" {
		difficulty, err := ParseFloat(params.Get("difficulty"))
		if err != nil {
			return nil, fmt.Errorf("invalid difficulty: %w", err)
		}
		payload["difficulty"] = difficulty
	}
	if params.Get("time_limit_ms") != "" {
		timeLimit, err := ParseInt(params.Get("time_limit_ms"))
		if err != nil {
			return nil, fmt.Errorf("invalid time_limit_ms: %w", err)
		}
		payload["time_limit_ms"] = timeLimit
	}
	for _, key := range []string{"headers", "functions", "tags"} {
		if params.Get(key) != "" {
			payload[key] = ParseStringList(params.Get(key))
		}
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	return payload, nil
}

func buildTestCasePayload(action string, params Params) (interface{}, error) {
	input, err := stringOrFile(params, "input", "input_file")
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{}
	if input != "" {
		payload["input"] = input
	} else if action == "create" {
		return nil, fmt.Errorf("input is required")
	}
	if params.Get("is_hidden") != "" {
		payload["is_hidden"] = ParseBool(params.Get("is_hidden"))
	}
	return payload, nil
}

func stringOrFile(params Params, key, fileKey string) (string, error) {
	value := params.Get(key)
	if (value == "" || value == "_file_") && params.Get(fileKey) != "" {
		data, err := ReadFile(params.Get(fileKey))
		if err != nil {
			return "", err
		}
		value = data
	}
	if value == "_file_" {
		value = ""
	}
	return value, nil
}
