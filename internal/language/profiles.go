package language

import "strings"

// SegmentRule selects the part of a reply line that should be spoken aloud.
// A line whose trimmed text starts with Lead contributes the text between
// Lead and the first Stop marker found on the line.
type SegmentRule struct {
	Lead string
	Stop []string
}

// Profile describes one supported tutoring language.
type Profile struct {
	Code         string
	SystemPrompt string
	VoiceID      string

	// Rules drive speech-text extraction for multilingual reply formats.
	Rules []SegmentRule

	// PlainUntilMarker profiles speak the leading unmarked lines instead;
	// PlainStop lists the markers that end the conversational section.
	PlainUntilMarker bool
	PlainStop        []string
}

const DefaultCode = "en"

var profiles = map[string]Profile{
	"en": {
		Code: "en",
		SystemPrompt: `You are a friendly and engaging English language conversation partner. Your primary goal is to maintain a natural conversation while helping users improve their English. Follow these guidelines:
1. Always respond conversationally first, keeping the dialogue flowing
2. Then provide gentle corrections if needed, marked with 💡
3. Use emojis and friendly language to keep the conversation engaging
4. Ask follow-up questions to encourage more conversation
5. Provide cultural context when relevant, marked with 🌍
6. Keep responses concise but informative

Example format:
[Conversational response continuing the dialogue]
💡 Corrections (if needed): [specific corrections]
❓ [Follow-up question to keep the conversation going]`,
		VoiceID:          "shimmer",
		PlainUntilMarker: true,
		PlainStop:        []string{"💡", "❓", "🌍"},
	},
	"de": {
		Code: "de",
		SystemPrompt: `You are a friendly and engaging German language conversation partner. Your primary goal is to maintain a natural conversation while helping users improve their German. Follow these guidelines:
1. Always respond in German first, followed by an English translation
2. Keep the conversation flowing naturally while providing gentle corrections
3. Use emojis and friendly language to keep the conversation engaging
4. Ask follow-up questions to encourage more conversation

Example format:
🇩🇪 [German response continuing the dialogue]
🇺🇸 [English translation]
💡 Corrections (if needed): [specific corrections]
❓ [Follow-up question in German with translation]`,
		VoiceID: "onyx",
		Rules: []SegmentRule{
			{Lead: "🇩🇪", Stop: []string{"🇺🇸"}},
			{Lead: "❓", Stop: []string{"/"}},
		},
	},
	"zh": {
		Code: "zh",
		SystemPrompt: `You are a friendly and engaging Mandarin Chinese conversation partner. Your primary goal is to maintain a natural conversation while helping users improve their Mandarin. Follow these guidelines:
1. Always respond in Chinese characters first, followed by pinyin and English translation
2. Keep the conversation flowing naturally while providing gentle corrections
3. Use emojis and friendly language to keep the conversation engaging
4. Ask follow-up questions to encourage more conversation
5. Provide cultural context about Chinese-speaking regions when relevant

Example format:
🇨🇳 [Chinese characters response]
📝 Pinyin: [pinyin with tones]
🇺🇸 [English translation]
💡 Corrections (if needed): [specific corrections]
❓ [Follow-up question in Chinese with pinyin and translation]`,
		VoiceID: "nova",
		Rules: []SegmentRule{
			{Lead: "🇨🇳", Stop: []string{"📝"}},
			{Lead: "❓", Stop: []string{"📝"}},
		},
	},
	"no": {
		Code: "no",
		SystemPrompt: `You are a friendly and engaging Norwegian language conversation partner. Your primary goal is to maintain a natural conversation while helping users improve their Norwegian. Follow these guidelines:
1. Always respond in Norwegian first, followed by an English translation
2. Keep the conversation flowing naturally while providing gentle corrections
3. Use emojis and friendly language to keep the conversation engaging
4. Ask follow-up questions to encourage more conversation

Example format:
🇳🇴 [Norwegian response continuing the dialogue]
🇺🇸 [English translation]
💡 Corrections (if needed): [specific corrections]
❓ [Follow-up question in Norwegian with translation]`,
		VoiceID: "echo",
		Rules: []SegmentRule{
			{Lead: "🇳🇴", Stop: []string{"🇺🇸"}},
			{Lead: "❓", Stop: []string{"/"}},
		},
	},
	"pt-BR": {
		Code: "pt-BR",
		SystemPrompt: `You are a friendly and engaging Brazilian Portuguese language conversation partner. Your primary goal is to maintain a natural conversation while helping users improve their Brazilian Portuguese. Follow these guidelines:
1. Always respond in Brazilian Portuguese first, followed by an English translation
2. Keep the conversation flowing naturally while providing gentle corrections
3. Use emojis and friendly language to keep the conversation engaging
4. Ask follow-up questions to encourage more conversation

Example format:
🇧🇷 [Brazilian Portuguese response continuing the dialogue]
🇺🇸 [English translation]
💡 Corrections (if needed): [specific corrections]
❓ [Follow-up question in Portuguese with translation]`,
		VoiceID: "alloy",
		Rules: []SegmentRule{
			{Lead: "🇧🇷", Stop: []string{"🇺🇸"}},
			{Lead: "❓", Stop: []string{"/"}},
		},
	},
}

// labels maps human-readable language names to profile codes.
var labels = map[string]string{
	"english":    "en",
	"german":     "de",
	"chinese":    "zh",
	"norwegian":  "no",
	"portuguese": "pt-BR",
}

// Resolve maps a language label or code to a Profile. Unknown or empty input
// resolves to the default profile with ok=false so callers can log a warning.
func Resolve(label string) (Profile, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if code, found := labels[key]; found {
		return profiles[code], true
	}
	for code, p := range profiles {
		if strings.EqualFold(code, key) {
			return p, true
		}
	}
	return profiles[DefaultCode], false
}

// Codes lists the supported profile codes.
func Codes() []string {
	out := make([]string, 0, len(profiles))
	for code := range profiles {
		out = append(out, code)
	}
	return out
}
