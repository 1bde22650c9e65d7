package datamodels

type AlertChannel string

const (
	AlertChannelTelegram AlertChannel = "telegram"
	AlertChannelWebhook  AlertChannel = "webhook"
	AlertChannelLog      AlertChannel = "log"
)

type AlertTarget struct {
	Channel AlertChannel `json:"channel"`
	ChatId  string       `json:"chatId,omitempty"`
	URL     string       `json:"url,omitempty"`
}

// AlertComparator uses the symbolic spellings users type in threshold rules.
type AlertComparator string

const (
	AlertCmpGt  AlertComparator = ">"
	AlertCmpGte AlertComparator = ">="
	AlertCmpLt  AlertComparator = "<"
	AlertCmpLte AlertComparator = "<="
	AlertCmpEq  AlertComparator = "=="
)

func (c AlertComparator) Matches(lhs, rhs float64) bool {
	switch c {
	case AlertCmpGt:
		return lhs > rhs
	case AlertCmpGte:
		return lhs >= rhs
	case AlertCmpLt:
		return lhs < rhs
	case AlertCmpLte:
		return lhs <= rhs
	case AlertCmpEq, "=":
		return lhs == rhs
	default:
		return false
	}
}

// ThresholdRule fires once when a closed bar's close satisfies the comparator
// and is deleted immediately after (one-shot).
type ThresholdRule struct {
	Id           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Comparator   AlertComparator `json:"comparator"`
	Value        float64         `json:"value"`
	Timeframe    Timeframe       `json:"timeframe"`
	AlertTargets []AlertTarget   `json:"alertTargets"`
}

type SignalAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
