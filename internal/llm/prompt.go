package llm

import "fmt"

// Action is a text operation the user can pick from the menu.
type Action string

const (
	ActionCorrect Action = "correct"
	ActionRewrite Action = "rewrite"
)

// ParseAction validates callback data coming from the menu.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionCorrect, ActionRewrite:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Prompt builds the instruction sent to the model for the given action.
func Prompt(action Action, text string) string {
	switch action {
	case ActionRewrite:
		return "أعد صياغة النص التالي بلغة عربية فصحى سليمة مع الحفاظ على نفس المعنى:\n\n" +
			text + "\n\n" +
			"الرجاء إرسال النص المعاد صياغته فقط دون أي تعليقات إضافية."
	default:
		return "صحح الأخطاء النحوية والإملائية في النص التالي مع الحفاظ على نفس المعنى:\n\n" +
			text + "\n\n" +
			"الرجاء إرسال النص المصحح فقط دون أي تعليقات إضافية."
	}
}
