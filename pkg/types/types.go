package types

import "fmt"

// ErrorPrefix starts the text written in place of a caption when an image fails
const ErrorPrefix = "Error processing image: "

// Decoding holds the fixed decoding settings sent with every caption request
type Decoding struct {
	MaxTokens int `json:"max_tokens"`
	NumBeams  int `json:"num_beams"`
}

// Result is the outcome of captioning a single input file
type Result struct {
	Name       string `json:"name"`
	OutputPath string `json:"output_path"`
	Caption    string `json:"caption,omitempty"`
	Err        error  `json:"-"`
	// Cancelled is set when the run was interrupted before anything was written
	Cancelled bool `json:"cancelled,omitempty"`
}

// OK reports whether a caption was produced
func (r Result) OK() bool {
	return r.Err == nil
}

// Text returns what gets persisted for this result: the caption, or an error description
func (r Result) Text() string {
	if r.Err != nil {
		return fmt.Sprintf("%s%v", ErrorPrefix, r.Err)
	}
	return r.Caption
}

// Summary aggregates the results of one batch run
type Summary struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

// Add records a result and updates the counters
func (s *Summary) Add(r Result) {
	s.Total++
	if r.OK() {
		s.Succeeded++
	} else {
		s.Failed++
	}
	s.Results = append(s.Results, r)
}
