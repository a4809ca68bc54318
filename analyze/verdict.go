package analyze

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

const (
	StatusOK       = "ok"
	StatusStolen   = "stolen"
	StatusReplaced = "replaced"

	DangerLow    = "low"
	DangerMedium = "medium"
	DangerHigh   = "high"
)

// ErrMalformedVerdict is wrapped by every ParseVerdict failure.
var ErrMalformedVerdict = errors.New("malformed verdict")

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New()
)

// Verdict is the analyzer's judgement of one frame against the reference.
type Verdict struct {
	Status               string `json:"status" validate:"required,oneof=ok stolen replaced"`
	NewObjectDescription string `json:"new_object_description"`
	DangerLevel          string `json:"danger_level" validate:"required,oneof=low medium high"`
	Reason               string `json:"reason" validate:"required"`
}

// ParseVerdict extracts a Verdict from raw analyzer output. Code fences and
// any text around the JSON object are ignored.
func ParseVerdict(raw string) (*Verdict, error) {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		s = s[i : j+1]
	}

	var v Verdict
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	v.Status = strings.ToLower(strings.TrimSpace(v.Status))
	v.DangerLevel = strings.ToLower(strings.TrimSpace(v.DangerLevel))
	if err := validate.Struct(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	return &v, nil
}

// Alarming reports whether the verdict warrants a notification.
func (v *Verdict) Alarming() bool {
	return v.DangerLevel == DangerMedium || v.DangerLevel == DangerHigh || v.Status != StatusOK
}

// Message renders the verdict for humans.
func (v *Verdict) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "🤖 Analysis result: %s, danger level: %s\nReason: %s", v.Status, v.DangerLevel, v.Reason)
	if v.Status == StatusReplaced && v.NewObjectDescription != "" {
		fmt.Fprintf(&b, "\nNew object: %s", v.NewObjectDescription)
	}
	return b.String()
}
