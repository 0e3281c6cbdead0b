package llm

import "testing"

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"backtick fences", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"tilde fences", "~~~\n{\"a\":1}\n~~~", `{"a":1}`},
		{"unclosed fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"surrounding whitespace", "  \n```\n{\"a\":1}\n```  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.input); got != tt.expected {
				t.Errorf("StripFences(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prose around object", `Sure! Here it is: {"a":1} hope that helps`, `{"a":1}`, true},
		{"nested objects", `{"a":{"b":2}}`, `{"a":{"b":2}}`, true},
		{"braces inside strings", `{"a":"}{"}`, `{"a":"}{"}`, true},
		{"escaped quote in string", `{"a":"say \"hi\" {now}"}`, `{"a":"say \"hi\" {now}"}`, true},
		{"no object", "just words", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstJSONObject(tt.input)
			if ok != tt.ok {
				t.Fatalf("FirstJSONObject(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if got != tt.expected {
				t.Errorf("FirstJSONObject(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	type payload struct {
		Name string  `json:"name"`
		Conf float64 `json:"confidence"`
	}

	tests := []struct {
		name     string
		input    string
		wantName string
		wantErr  bool
	}{
		{"direct json", `{"name":"ibuprofen","confidence":0.95}`, "ibuprofen", false},
		{"fenced json", "```json\n{\"name\":\"ibuprofen\",\"confidence\":0.95}\n```", "ibuprofen", false},
		{"json in prose", `The drug is: {"name":"ibuprofen","confidence":0.95}. Let me know!`, "ibuprofen", false},
		{"invalid regex escape", `{"name":"ibuprofen","confidence":0.95,"pattern":"\d+"}` , "ibuprofen", false},
		{"plain prose", "I could not identify that medication.", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			err := ExtractJSON(tt.input, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractJSON(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && p.Name != tt.wantName {
				t.Errorf("Extracted name = %q, want %q", p.Name, tt.wantName)
			}
		})
	}
}
