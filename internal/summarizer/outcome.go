package summarizer

// Status of a summarization call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Outcome is what every Engine call returns. Failures are values, not errors.
type Outcome struct {
	Summary          string `json:"summary"`
	Status           Status `json:"status"`
	ModelUsed        string `json:"model_used"`
	InputWords       int    `json:"input_words"`
	OutputWords      int    `json:"output_words"`
	NeedsTranslation bool   `json:"needs_translation"`
}

func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// Messages holds the user-facing strings for one target language.
type Messages struct {
	Unavailable     string
	EmptyInput      string
	InferenceError  string // %v is the cause
	LanguageNote    string // %s is the source language
	TranslationNote string // %s is the source language
}

var messages = map[string]Messages{
	"uk": {
		Unavailable:     "Стислий опис недоступний (модель не завантажена)",
		EmptyInput:      "Немає тексту для стислого опису",
		InferenceError:  "Помилка при створенні стислого опису: %v",
		LanguageNote:    " (Оригінальна мова: %s)",
		TranslationNote: "[Потребує перекладу з %s] ",
	},
	"en": {
		Unavailable:     "Summarization not available (model not loaded)",
		EmptyInput:      "No text to summarize",
		InferenceError:  "Error while generating the summary: %v",
		LanguageNote:    " (Original language: %s)",
		TranslationNote: "[Needs translation from %s] ",
	},
}

// MessagesFor returns the strings for lang, falling back to English.
func MessagesFor(lang string) Messages {
	if m, ok := messages[lang]; ok {
		return m
	}
	return messages["en"]
}
