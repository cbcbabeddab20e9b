package extractor

import (
	"fmt"

	"newsbrief/internal/model"
)

// Result is the structured output of one extraction. Every field is always
// set; on failure Content carries a placeholder and Err names the cause.
type Result struct {
	Title           string
	Content         string
	Authors         string
	PublishDate     string
	Language        string
	WordCount       int
	TopImage        string
	MetaDescription string
	Strategy        string
	Err             error
}

// Failed reports whether extraction produced no usable content.
func (r Result) Failed() bool {
	return r.Err != nil
}

func failure(strategy string, err error) Result {
	return Result{
		Title:    "Untitled",
		Content:  fmt.Sprintf("Content could not be extracted: %v", err),
		Language: model.LanguageUnknown,
		Strategy: strategy,
		Err:      err,
	}
}

// fillFrom copies metadata that r lacks from other.
func (r *Result) fillFrom(other Result) {
	if r.Title == "" {
		r.Title = other.Title
	}
	if r.Authors == "" {
		r.Authors = other.Authors
	}
	if r.PublishDate == "" {
		r.PublishDate = other.PublishDate
	}
	if r.Language == "" || r.Language == model.LanguageUnknown {
		r.Language = other.Language
	}
	if r.TopImage == "" {
		r.TopImage = other.TopImage
	}
	if r.MetaDescription == "" {
		r.MetaDescription = other.MetaDescription
	}
}
