package types

import "github.com/m-mizutani/goerr/v2"

// ContentType is the classified content category of an incoming query
type ContentType string

const (
	ContentTypeText    ContentType = "text"
	ContentTypeCoding  ContentType = "coding"
	ContentTypeImage   ContentType = "image"
	ContentTypeDiagram ContentType = "diagram"
	ContentTypeVideo   ContentType = "video"
)

func (t ContentType) String() string {
	return string(t)
}

// Validate checks if the content type is one of the known values
func (t ContentType) Validate() error {
	switch t {
	case ContentTypeText, ContentTypeCoding, ContentTypeImage, ContentTypeDiagram, ContentTypeVideo:
		return nil
	default:
		return goerr.New("invalid content type", goerr.V("type", string(t)))
	}
}

// Difficulty is the coarse difficulty estimate of an incoming query
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) String() string {
	return string(d)
}

// Validate checks if the difficulty is one of the known values
func (d Difficulty) Validate() error {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return nil
	default:
		return goerr.New("invalid difficulty", goerr.V("difficulty", string(d)))
	}
}
