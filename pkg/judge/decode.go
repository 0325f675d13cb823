package judge

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// modelJudgment is a judgment as the model writes it. Field types drift
// between calls ("true" for true, a bare string for a one-item list), so
// every field is decoded loosely.
type modelJudgment struct {
	CommentID        json.RawMessage `json:"comment_id"`
	CommentText      json.RawMessage `json:"comment_text"`
	FlavorsMentioned json.RawMessage `json:"flavors_mentioned"`
	IsRelevant       json.RawMessage `json:"is_relevant"`
	Sentiment        json.RawMessage `json:"sentiment"`
	BrandFit         json.RawMessage `json:"brand_fit"`
	Reasoning        json.RawMessage `json:"reasoning"`
}

func (m modelJudgment) judgment() Judgment {
	return Judgment{
		CommentID:        looseString(m.CommentID),
		CommentText:      looseString(m.CommentText),
		FlavorsMentioned: looseStrings(m.FlavorsMentioned),
		IsRelevant:       looseBool(m.IsRelevant),
		Sentiment:        looseString(m.Sentiment),
		BrandFit:         looseString(m.BrandFit),
		Reasoning:        looseString(m.Reasoning),
	}
}

// decodeJudgments decodes a JSON array of judgments, skipping elements that
// are not objects.
func decodeJudgments(text string) ([]Judgment, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elems); err != nil {
		return nil, err
	}

	out := make([]Judgment, 0, len(elems))
	for i, el := range elems {
		var m modelJudgment
		if err := json.Unmarshal(el, &m); err != nil {
			logrus.WithField("index", i).Debugf("skip malformed judgment: %v", err)
			continue
		}
		out = append(out, m.judgment())
	}
	return out, nil
}

func decodeJudgment(text string) (Judgment, error) {
	var m modelJudgment
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return Judgment{}, err
	}
	return m.judgment(), nil
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func looseStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s := strings.TrimSpace(looseString(raw)); s != "" {
			return []string{s}
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := looseString(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func looseBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	s := strings.ToLower(strings.TrimSpace(looseString(raw)))
	if s == "yes" || s == "y" {
		return true
	}
	v, _ := strconv.ParseBool(s)
	return v
}
