package job

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"adwise/src/core/failure"
)

// Language is the locale the generated content is produced in
type Language string

const (
	English   Language = "English"
	Hindi     Language = "Hindi"
	Tamil     Language = "Tamil"
	Telugu    Language = "Telugu"
	Kannada   Language = "Kannada"
	Malayalam Language = "Malayalam"
	Marathi   Language = "Marathi"
	Punjabi   Language = "Punjabi"
	Urdu      Language = "Urdu"
	Gujrati   Language = "Gujrati"
)

// SupportedLanguages lists every language the Generation Service accepts
var SupportedLanguages = []Language{
	English, Hindi, Tamil, Telugu, Kannada, Malayalam, Marathi, Punjabi, Urdu, Gujrati,
}

// ContentPreference selects the style of the generated content
type ContentPreference string

const (
	Concise        ContentPreference = "concise"
	Elaborate      ContentPreference = "elaborate"
	Branding       ContentPreference = "branding"
	LeadGeneration ContentPreference = "lead-generation"
)

var SupportedPreferences = []ContentPreference{Concise, Elaborate, Branding, LeadGeneration}

// AcceptedExtensions are the document formats the Generation Service can ingest
var AcceptedExtensions = []string{".pdf", ".doc", ".docx", ".pptx", ".jpg", ".jpeg", ".png"}

// ParseLanguage matches s case-insensitively against the supported languages.
// An empty string selects English.
func ParseLanguage(s string) (Language, error) {
	if strings.TrimSpace(s) == "" {
		return English, nil
	}
	for _, l := range SupportedLanguages {
		if strings.EqualFold(string(l), strings.TrimSpace(s)) {
			return l, nil
		}
	}
	return "", failure.Newf(failure.Validation, "unsupported language %q", s)
}

// ParseContentPreference matches s case-insensitively. An empty string selects Concise.
func ParseContentPreference(s string) (ContentPreference, error) {
	if strings.TrimSpace(s) == "" {
		return Concise, nil
	}
	for _, p := range SupportedPreferences {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", failure.Newf(failure.Validation, "unsupported content preference %q", s)
}

// Source is the material a submission is generated from: a FileSource or a TextSource
type Source interface {
	isSource()
}

// FileSource is an uploaded document
type FileSource struct {
	Name        string
	ContentType string
	Data        []byte
}

// TextSource is free text typed by the user
type TextSource struct {
	Text string
}

func (FileSource) isSource() {}
func (TextSource) isSource() {}

// Payload is one immutable submission. Build it with NewFilePayload or
// NewTextPayload; the zero value is rejected by Validate.
type Payload struct {
	source     Source
	language   Language
	preference ContentPreference
}

// NewFilePayload builds a payload from a document
func NewFilePayload(file FileSource, language Language, preference ContentPreference) (Payload, error) {
	p := Payload{source: file, language: language, preference: preference}
	return p, p.Validate()
}

// NewTextPayload builds a payload from free text
func NewTextPayload(text string, language Language, preference ContentPreference) (Payload, error) {
	p := Payload{source: TextSource{Text: text}, language: language, preference: preference}
	return p, p.Validate()
}

func (p Payload) Source() Source {
	return p.source
}

func (p Payload) Language() Language {
	return p.language
}

func (p Payload) ContentPreference() ContentPreference {
	return p.preference
}

// Validate reports a ValidationError when the payload cannot be submitted
func (p Payload) Validate() error {
	var errs []error

	switch src := p.source.(type) {
	case nil:
		errs = append(errs, errors.New("either a file or text is required"))
	case FileSource:
		if len(src.Data) == 0 {
			errs = append(errs, errors.New("file is empty"))
		}
		if !acceptedExtension(src.Name) {
			errs = append(errs, fmt.Errorf("unsupported file format %q, accepted formats are %s",
				filepath.Ext(src.Name), strings.Join(AcceptedExtensions, ", ")))
		}
	case TextSource:
		if strings.TrimSpace(src.Text) == "" {
			errs = append(errs, errors.New("text is empty"))
		}
	}

	if !supportedLanguage(p.language) {
		errs = append(errs, fmt.Errorf("unsupported language %q", p.language))
	}
	if !supportedPreference(p.preference) {
		errs = append(errs, fmt.Errorf("unsupported content preference %q", p.preference))
	}

	if len(errs) > 0 {
		return failure.New(failure.Validation, errors.Join(errs...))
	}
	return nil
}

func acceptedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, accepted := range AcceptedExtensions {
		if ext == accepted {
			return true
		}
	}
	return false
}

func supportedLanguage(l Language) bool {
	for _, s := range SupportedLanguages {
		if s == l {
			return true
		}
	}
	return false
}

func supportedPreference(p ContentPreference) bool {
	for _, s := range SupportedPreferences {
		if s == p {
			return true
		}
	}
	return false
}
