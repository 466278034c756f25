package gemini

// promptData is passed to the quiz prompt template.
type promptData struct {
	Source     string
	Count      int
	MaxOptions int
}

// quizResponse is the JSON document the model is constrained to return.
type quizResponse struct {
	Questions []questionSchema `json:"questions"`
}

type questionSchema struct {
	Prompt      string         `json:"prompt"`
	Options     []optionSchema `json:"options"`
	CorrectKey  string         `json:"correct_key"`
	Explanation string         `json:"explanation"`
}

type optionSchema struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}
