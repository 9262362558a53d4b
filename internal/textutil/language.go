package textutil

import "strings"

// sinhalaCommonWords is the small fixed fallback word list used when the
// Unicode-block ratio test is inconclusive (e.g. short or mixed-script
// samples). Ported from original_source's news_agg/text/language.py.
var sinhalaCommonWords = map[string]struct{}{
	"සහ": {}, "මේ": {}, "නිසා": {}, "වන": {}, "ඇති": {},
	"බව": {}, "සඳහා": {}, "ලංකා": {}, "අද": {}, "රට": {},
}

const sinhalaBlockRatioThreshold = 0.10
const sampleRuneCount = 500
const sampleTokenCount = 50

func isSinhalaRune(r rune) bool {
	return r >= 0x0D80 && r <= 0x0DFF
}

// DetectLanguage classifies text as "si" (Sinhala) or "en" (English),
// sampling the first 500 code points for Unicode-block ratio, then falling
// back to a fixed word-list check among the first 50 space-delimited tokens.
func DetectLanguage(text string) string {
	runes := []rune(text)
	if len(runes) > sampleRuneCount {
		runes = runes[:sampleRuneCount]
	}

	if len(runes) > 0 {
		sinhalaCount := 0
		for _, r := range runes {
			if isSinhalaRune(r) {
				sinhalaCount++
			}
		}
		if float64(sinhalaCount)/float64(len(runes)) >= sinhalaBlockRatioThreshold {
			return "si"
		}
	}

	tokens := strings.Fields(text)
	if len(tokens) > sampleTokenCount {
		tokens = tokens[:sampleTokenCount]
	}
	for _, tok := range tokens {
		if _, ok := sinhalaCommonWords[tok]; ok {
			return "si"
		}
	}

	return "en"
}
