package parser

import (
	"context"
	"encoding/json"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

func TestParse_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantStage string
		check     func(t *testing.T, payload map[string]any)
	}{
		{
			name:      "Fenced JSON with trailing comma",
			text:      "```json\n{\"health_score\":\"B\",\"risks\":[],\"full_ingredients\":[\"Water\",],\"alternatives\":[]}\n```",
			wantStage: "repair",
			check: func(t *testing.T, payload map[string]any) {
				if payload["health_score"] != "B" {
					t.Errorf("health_score = %v", payload["health_score"])
				}
				ingredients, ok := payload["full_ingredients"].([]any)
				if !ok || len(ingredients) != 1 || ingredients[0] != "Water" {
					t.Errorf("full_ingredients = %v", payload["full_ingredients"])
				}
			},
		},
		{
			name:      "Clean fenced JSON",
			text:      "```json\n{\"health_score\":\"A\"}\n```",
			wantStage: "strict",
		},
		{
			name:      "Prose around object",
			text:      "Here is the analysis:\n{\"health_score\":\"C\",\"summary\":\"ok\"}\nHope this helps!",
			wantStage: "extract_object",
		},
		{
			name:      "Comments",
			text:      "{\n  // overall\n  \"health_score\": \"D\", /* grade */\n  \"summary\": \"see http://example.com\"\n}",
			wantStage: "repair",
			check: func(t *testing.T, payload map[string]any) {
				if payload["summary"] != "see http://example.com" {
					t.Errorf("comment stripping touched string content: %v", payload["summary"])
				}
			},
		},
		{
			name:      "Full-width punctuation",
			text:      "｛\"health_score\"：\"B\"，\"summary\"：\"良好，适量\"｝",
			wantStage: "repair",
			check: func(t *testing.T, payload map[string]any) {
				if payload["summary"] != "良好，适量" {
					t.Errorf("normalization touched string content: %v", payload["summary"])
				}
			},
		},
		{
			name:      "Full-width punctuation in single-quoted literal",
			text:      "{'health_score': 'B', 'summary': '良好，适量（少糖）'}",
			wantStage: "requote",
			check: func(t *testing.T, payload map[string]any) {
				if payload["summary"] != "良好，适量（少糖）" {
					t.Errorf("normalization touched string content: %v", payload["summary"])
				}
			},
		},
		{
			name:      "URL in single-quoted literal",
			text:      "{'health_score': 'B', 'summary': 'see http://example.com'}",
			wantStage: "requote",
			check: func(t *testing.T, payload map[string]any) {
				if payload["summary"] != "see http://example.com" {
					t.Errorf("comment stripping touched string content: %v", payload["summary"])
				}
			},
		},
		{
			name:      "Python literal with URL",
			text:      "{'source': 'http://example.com/a,]', 'vegan': False,}",
			wantStage: "literal",
			check: func(t *testing.T, payload map[string]any) {
				if payload["source"] != "http://example.com/a,]" || payload["vegan"] != false {
					t.Errorf("payload = %v", payload)
				}
			},
		},
		{
			name:      "Single quotes",
			text:      "{'health_score': 'E', 'summary': 'Say \"no\"', 'alternatives': ['Oats',]}",
			wantStage: "requote",
			check: func(t *testing.T, payload map[string]any) {
				if payload["summary"] != `Say "no"` {
					t.Errorf("summary = %v", payload["summary"])
				}
			},
		},
		{
			name:      "Python literal",
			text:      "{'health_score': 'B', 'vegan': True, 'notes': None, 'tags': ('a', 'b'), confidence: 0.9}",
			wantStage: "literal",
			check: func(t *testing.T, payload map[string]any) {
				if payload["vegan"] != true || payload["notes"] != nil {
					t.Errorf("keywords not converted: %v", payload)
				}
				if tags, ok := payload["tags"].([]any); !ok || len(tags) != 2 {
					t.Errorf("tuple not converted: %v", payload["tags"])
				}
				if payload["confidence"] != 0.9 {
					t.Errorf("confidence = %v", payload["confidence"])
				}
			},
		},
		{
			name:      "Apostrophe inside single-quoted literal",
			text:      "{'name': 'Kellogg\\'s', 'health_score': 'C'}",
			wantStage: "requote",
			check: func(t *testing.T, payload map[string]any) {
				if payload["name"] != "Kellogg's" {
					t.Errorf("name = %v", payload["name"])
				}
			},
		},
		{
			name:      "Declared non-label image",
			text:      `{"error":"not a label","error_type":"invalid_image"}`,
			wantStage: "strict",
			check: func(t *testing.T, payload map[string]any) {
				if payload["error"] != "not a label" || payload["error_type"] != "invalid_image" {
					t.Errorf("payload = %v", payload)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse(tt.text)
			if result.Failed() {
				t.Fatalf("Parse failed: %v", result.Err)
			}
			if result.Stage != tt.wantStage {
				t.Errorf("Stage = %q, want %q", result.Stage, tt.wantStage)
			}
			if tt.check != nil {
				tt.check(t, result.Payload)
			}
		})
	}
}

func TestParse_Unparsable(t *testing.T) {
	inputs := []string{
		"I'm sorry, I cannot analyze this image.",
		"",
		"[1, 2, 3]",
		"42",
		"null",
		"{",
		"}{",
		"{'unterminated: 1}",
		"```json\n```",
		strings.Repeat("{", 200) + strings.Repeat("}", 200),
	}

	for _, in := range inputs {
		result := Parse(in)
		if !result.Failed() {
			t.Errorf("Expected %q to fail, got stage %s payload %v", in, result.Stage, result.Payload)
			continue
		}
		if result.Err == nil {
			t.Errorf("Expected terminal error for %q", in)
		}
		if !reflect.DeepEqual(result.Payload, FailurePayload()) {
			t.Errorf("Expected failure payload for %q, got %v", in, result.Payload)
		}
	}
}

func TestParse_Totality(t *testing.T) {
	alphabet := []rune("{}[]()'\",:;/*\\ \n\tabcTrueFalseNone0123456789.-，：｛｝“”`")
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		n := rng.Intn(60)
		runes := make([]rune, n)
		for j := range runes {
			runes[j] = alphabet[rng.Intn(len(alphabet))]
		}
		text := string(runes)

		result := Parse(text)
		if result.Payload == nil {
			t.Fatalf("Parse(%q) returned nil payload", text)
		}
		if result.Failed() && !reflect.DeepEqual(result.Payload, FailurePayload()) {
			t.Fatalf("Parse(%q) failed without the failure payload: %v", text, result.Payload)
		}
	}
}

func TestParse_CleanInputMatchesStrictDecode(t *testing.T) {
	inputs := []string{
		`{"health_score":"B","summary":"Fair - 50% Healthy","risks":[{"level":"High","name":"Aspartame (E951)","desc":"人工甜味剂"}],"full_ingredients":[{"name":"Oats","description":"燕麦"}],"alternatives":["Granola"]}`,
		`{"url":"http://example.com/a//b","note":"it's fine, isn't it?","nested":{"x":[1,2.5,null,true]}}`,
		`{}`,
	}

	for _, in := range inputs {
		var want map[string]any
		if err := json.Unmarshal([]byte(in), &want); err != nil {
			t.Fatalf("bad fixture: %v", err)
		}

		result := Parse(in)
		if result.Stage != "strict" {
			t.Errorf("Expected strict stage for clean input, got %q", result.Stage)
		}
		if !reflect.DeepEqual(result.Payload, want) {
			t.Errorf("Parse(%s) = %v, want %v", in, result.Payload, want)
		}

		if repaired := Repair(in); repaired != in {
			t.Errorf("Repair changed clean input:\n got %s\nwant %s", repaired, in)
		}
		if again := Repair(Repair(in)); again != Repair(in) {
			t.Errorf("Repair is not idempotent on %s", in)
		}
	}
}

func TestParser_RecoversStagePanic(t *testing.T) {
	p := New(
		Stage{Name: "explode", Apply: func(string) Outcome { panic("boom") }},
		Stage{Name: "strict", Apply: strictStage},
	)

	result := p.Parse(context.Background(), `{"a":1}`)
	if result.Stage != "strict" {
		t.Errorf("Expected later stage to run after a panic, got %q (%v)", result.Stage, result.Err)
	}
}

func TestParser_NoStages(t *testing.T) {
	result := New().Parse(context.Background(), `{"a":1}`)
	if !result.Failed() || result.Err == nil {
		t.Error("Expected parser without stages to fail")
	}
}

func TestFailurePayload_IsFresh(t *testing.T) {
	first := FailurePayload()
	first["error"] = "mutated"
	if FailurePayload()["error"] != FailureMessage {
		t.Error("Expected FailurePayload to return an independent map")
	}
}

func TestStripTrailingCommas(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":[1,2,],}`, `{"a":[1,2]}`},
		{"[1,\n  ]", "[1\n  ]"},
		{`{"s":"a,}"}`, `{"s":"a,}"}`},
		{`{"s":"q\",]","x":1}`, `{"s":"q\",]","x":1}`},
		{`{'s':'a,]','t':"it's",}`, `{'s':'a,]','t':"it's"}`},
	}
	for _, tt := range tests {
		if got := StripTrailingCommas(tt.in); got != tt.want {
			t.Errorf("StripTrailingCommas(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRequote(t *testing.T) {
	got, err := Requote(`{'a': "it's", 'b': 'say "hi"'}`)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a": "it's", "b": "say \"hi\""}`
	if got != want {
		t.Errorf("Requote = %s, want %s", got, want)
	}

	if _, err := Requote(`{'a: 1}`); err == nil {
		t.Error("Expected error for unterminated literal")
	}
}

func TestParseLiteral_Errors(t *testing.T) {
	inputs := []string{
		`[1, 2]`,
		`{'a': undefined}`,
		`{'a' 1}`,
		`{'a': 1} trailing`,
		`{'a': 1e999}`,
	}
	for _, in := range inputs {
		if _, err := ParseLiteral(in); err == nil {
			t.Errorf("Expected ParseLiteral(%s) to fail", in)
		}
	}
}
