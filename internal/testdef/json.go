package testdef

import "encoding/json"

type questionAlias Question

type questionJSON struct {
	questionAlias
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
}

// UnmarshalJSON decodes a question whose correctAnswer is written in its
// untagged document form. A malformed key is not a decode error: it is kept
// on the question and reported by Validate together with every other problem.
func (q *Question) UnmarshalJSON(data []byte) error {
	var in questionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*q = Question(in.questionAlias)
	key, err := decodeKey(q.Type, in.CorrectAnswer)
	if err != nil {
		q.keyErr = err.Error()
		return nil
	}
	q.CorrectAnswer = key
	return nil
}

// MarshalJSON writes the question in document form so that a parsed test
// re-encodes to an equivalent document.
func (q Question) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		questionAlias
		CorrectAnswer any `json:"correctAnswer"`
	}{
		questionAlias: questionAlias(q),
		CorrectAnswer: q.CorrectAnswer.Value(),
	})
}
