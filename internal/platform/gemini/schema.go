package gemini

import "google.golang.org/genai"

// quizSchema constrains the model output to quizResponse.
func quizSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	option := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"key":  str,
			"text": str,
		},
		Required: []string{"key", "text"},
	}
	question := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"prompt":      str,
			"options":     {Type: genai.TypeArray, Items: option},
			"correct_key": str,
			"explanation": str,
		},
		Required: []string{"prompt", "options", "correct_key"},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"questions": {Type: genai.TypeArray, Items: question},
		},
		Required: []string{"questions"},
	}
}
